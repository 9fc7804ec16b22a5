//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct{ Message string }

	w := httptest.NewRecorder()
	ok := decodeJSON(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"message":"hi"}`)), &v, false)
	assert.True(t, ok)
	assert.Equal(t, "hi", v.Message)

	w = httptest.NewRecorder()
	assert.False(t, decodeJSON(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`)), &v, false))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	assert.True(t, decodeJSON(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &v, true))

	w = httptest.NewRecorder()
	big := `{"message":"` + strings.Repeat("a", defaultMaxRequestBodySize) + `"}`
	assert.False(t, decodeJSON(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big)), &v, false))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
