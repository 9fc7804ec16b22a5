package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/vish/internal/config"
	"github.com/ashureev/vish/internal/mcp"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeKnowledgeStatus struct{}

func (fakeKnowledgeStatus) State() mcp.State      { return mcp.StateConnected }
func (fakeKnowledgeStatus) BreakerState() string { return "closed" }

type healthBody struct {
	Status      string            `json:"status"`
	Environment map[string]bool   `json:"environment"`
	Checks      map[string]string `json:"checks"`
}

func getHealth(t *testing.T, h *HealthHandler) (int, healthBody) {
	t.Helper()
	w := httptest.NewRecorder()
	NewRouter(Handlers{Health: h}, []string{"*"}, true).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var body healthBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func TestHealth(t *testing.T) {
	configured := &config.Config{}
	configured.Generation.APIKey = "key"
	configured.Generation.InstanceName = "vish"
	configured.Generation.Deployment = "gpt-4o"

	t.Run("healthy", func(t *testing.T) {
		code, body := getHealth(t, NewHealthHandler(fakePinger{}, fakeKnowledgeStatus{}, configured, nil))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, map[string]bool{"hasApiKey": true, "hasInstanceName": true, "hasDeploymentName": true}, body.Environment)
		assert.Equal(t, "ok", body.Checks["database"])
		assert.Equal(t, "connected", body.Checks["knowledge"])
		assert.Equal(t, "closed", body.Checks["knowledge_breaker"])
	})

	t.Run("missing credentials", func(t *testing.T) {
		code, body := getHealth(t, NewHealthHandler(fakePinger{}, nil, &config.Config{}, nil))
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "unhealthy", body.Status)
		assert.False(t, body.Environment["hasApiKey"])
		assert.NotContains(t, body.Checks, "knowledge")
	})

	t.Run("database down", func(t *testing.T) {
		code, body := getHealth(t, NewHealthHandler(fakePinger{err: errors.New("locked")}, nil, configured, nil))
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "unreachable", body.Checks["database"])
	})
}

func TestIndex(t *testing.T) {
	w := httptest.NewRecorder()
	h := NewHealthHandler(nil, nil, &config.Config{}, nil)
	NewRouter(Handlers{Health: h}, []string{"*"}, true).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Vish AI API is running!", body["message"])
	assert.Contains(t, body["endpoints"], "/chat")
}

func TestHeartbeatAndMetrics(t *testing.T) {
	h := NewRouter(Handlers{}, []string{"*"}, true)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vish_http_requests_total")
}
