package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/vish/internal/agent"
	"github.com/ashureev/vish/internal/mcp"
)

type fakeTools struct {
	available bool
	result    json.RawMessage
	err       error
	gotName   string
	gotArgs   map[string]any
}

func (f *fakeTools) Available() bool { return f.available }

func (f *fakeTools) InvokeTool(_ context.Context, name string, args map[string]any) (json.RawMessage, error) {
	f.gotName, f.gotArgs = name, args
	return f.result, f.err
}

func newAgentsRouter(t *testing.T, tools ToolInvoker) http.Handler {
	t.Helper()
	catalog, err := agent.DefaultCatalog()
	require.NoError(t, err)
	return NewRouter(Handlers{Agents: NewAgentsHandler(catalog, tools, nil)}, []string{"*"}, true)
}

func TestListAgents(t *testing.T) {
	h := newAgentsRouter(t, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/agents", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Agents []struct {
			Name string `json:"name"`
			Role string `json:"role"`
		} `json:"agents"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Agents, 4)
	assert.Equal(t, "crisis-counselor", body.Agents[0].Role)
}

func TestGetAgent(t *testing.T) {
	h := newAgentsRouter(t, nil)

	for _, role := range []string{"cbt-therapist", "cbt"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/agents/"+role, nil))
		require.Equal(t, http.StatusOK, w.Code, role)
		assert.Contains(t, w.Body.String(), `"role":"cbt-therapist"`)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/agents/astrologer", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCallTool(t *testing.T) {
	tests := []struct {
		name     string
		tools    *fakeTools
		body     map[string]any
		wantCode int
	}{
		{
			name:     "success",
			tools:    &fakeTools{available: true, result: json.RawMessage(`{"level":"low"}`)},
			body:     map[string]any{"name": mcp.ToolAssessCrisis, "arguments": map[string]any{"message": "hi"}},
			wantCode: http.StatusOK,
		},
		{
			name:     "unknown tool",
			tools:    &fakeTools{available: true},
			body:     map[string]any{"name": "rm_rf"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "service down",
			tools:    &fakeTools{available: false},
			body:     map[string]any{"name": mcp.ToolSearchTopics},
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "breaker open",
			tools:    &fakeTools{available: true, err: fmt.Errorf("%w: %w", mcp.ErrRemoteCallFailed, mcp.ErrCircuitOpen)},
			body:     map[string]any{"name": mcp.ToolSearchTopics},
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "remote failure",
			tools:    &fakeTools{available: true, err: errors.New("boom")},
			body:     map[string]any{"name": mcp.ToolSearchTopics},
			wantCode: http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAgentsRouter(t, tt.tools)
			w := postJSON(t, h, "/tools/call", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestCallToolForwardsArguments(t *testing.T) {
	tools := &fakeTools{available: true, result: json.RawMessage(`{"results":[]}`)}
	h := newAgentsRouter(t, tools)

	w := postJSON(t, h, "/tools/call", map[string]any{
		"name":      mcp.ToolSearchTopics,
		"arguments": map[string]any{"query": "sleep", "limit": 2},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":{"results":[]}}`, w.Body.String())
	assert.Equal(t, mcp.ToolSearchTopics, tools.gotName)
	assert.Equal(t, "sleep", tools.gotArgs["query"])
}

func TestCallToolWithoutClient(t *testing.T) {
	h := newAgentsRouter(t, nil)
	w := postJSON(t, h, "/tools/call", map[string]any{"name": mcp.ToolSearchTopics})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
