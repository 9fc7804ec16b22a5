package mcp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerHealth(t *testing.T) {
	h := NewServer(defaultKB(t), nil).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got Health
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "healthy", got.Status)
	assert.Equal(t, 4, got.Resources)
	assert.Equal(t, 5, got.Tools)
}

func TestServerToolCallStatuses(t *testing.T) {
	h := NewServer(defaultKB(t), nil).Handler()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"ok", `{"name":"get_crisis_resources","arguments":{"country":"CA"}}`, http.StatusOK},
		{"unknown tool", `{"name":"rm_rf","arguments":{}}`, http.StatusBadRequest},
		{"missing argument", `{"name":"recommend_coping_strategies","arguments":{}}`, http.StatusBadRequest},
		{"unknown technique", `{"name":"get_cbt_technique","arguments":{"technique":"x"}}`, http.StatusNotFound},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/mcp/tools/call", strings.NewReader(tt.body))
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestServerReadResource(t *testing.T) {
	h := NewServer(defaultKB(t), nil).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mcp/resources/crisis-resources", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		URI     string          `json:"uri"`
		Content json.RawMessage `json:"content"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, "vish://crisis-resources", got.URI)
	assert.Contains(t, string(got.Content), "crisisProtocol")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mcp/resources/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
