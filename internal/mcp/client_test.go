package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKnowledgeServer(t *testing.T) *httptest.Server {
	t.Helper()
	kb, err := DefaultKnowledgeBase()
	require.NoError(t, err)
	srv := httptest.NewServer(NewServer(kb, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestClientStartsDisconnected(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, c.Available())

	_, err := c.InvokeTool(context.Background(), ToolAssessCrisis, map[string]any{"message": "hi"})
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = c.ListTools(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClientConnectAndInvoke(t *testing.T) {
	srv := newKnowledgeServer(t)
	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	require.True(t, c.Connect(context.Background()))
	require.True(t, c.Connect(context.Background()))
	assert.Equal(t, StateConnected, c.State())
	assert.True(t, c.Available())

	raw, err := c.InvokeTool(context.Background(), ToolAssessCrisis, map[string]any{"message": "I want to end my life"})
	require.NoError(t, err)

	var res CrisisAssessment
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, "severe", res.CrisisLevel)
	assert.True(t, res.ShouldEscalateToCrisisAgent)
	require.NotNil(t, res.Protocol)

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools, len(KnownTools))

	resources, err := c.ListResources(context.Background())
	require.NoError(t, err)
	assert.Len(t, resources, 4)

	content, err := c.ReadResource(context.Background(), "coping-strategies")
	require.NoError(t, err)
	assert.Contains(t, string(content), "Box Breathing")

	_, err = c.ReadResource(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRemoteCallFailed)
}

func TestClientUnknownTool(t *testing.T) {
	srv := newKnowledgeServer(t)
	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.True(t, c.Connect(context.Background()))

	_, err := c.InvokeTool(context.Background(), "delete_everything", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestClientConnectFailureDisconnects(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.True(t, c.Connect(context.Background()))

	healthy.Store(false)
	assert.False(t, c.Connect(context.Background()))
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClientNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.True(t, c.Connect(context.Background()))

	_, err := c.InvokeTool(context.Background(), ToolSearchTopics, map[string]any{"query": "stress"})
	assert.ErrorIs(t, err, ErrRemoteCallFailed)
	// A failed call never changes connectivity.
	assert.Equal(t, StateConnected, c.State())
}

func TestClientMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		_, _ = w.Write([]byte(`not json`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	require.True(t, c.Connect(context.Background()))

	_, err := c.InvokeTool(context.Background(), ToolSearchTopics, map[string]any{"query": "stress"})
	assert.ErrorIs(t, err, ErrRemoteCallFailed)
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithCallTimeout(50*time.Millisecond))
	require.True(t, c.Connect(context.Background()))

	start := time.Now()
	_, err := c.InvokeTool(context.Background(), ToolSearchTopics, map[string]any{"query": "stress"})
	assert.ErrorIs(t, err, ErrRemoteCallFailed)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClientBreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL,
		WithHTTPClient(srv.Client()),
		WithBreaker(BreakerConfig{MaxFailures: 2, Timeout: time.Minute}),
	)
	require.True(t, c.Connect(context.Background()))

	for i := 0; i < 2; i++ {
		_, err := c.InvokeTool(context.Background(), ToolSearchTopics, map[string]any{"query": "stress"})
		require.ErrorIs(t, err, ErrRemoteCallFailed)
	}
	assert.Equal(t, "open", c.BreakerState())
	assert.False(t, c.Available())

	_, err := c.InvokeTool(context.Background(), ToolSearchTopics, map[string]any{"query": "stress"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, StateConnected, c.State())
}
