// Package api provides HTTP handlers for the Vish API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const defaultMaxRequestBodySize = 1 << 20 // 1 MB

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into v. On failure it writes the
// error response and returns false. An empty body is accepted when
// allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, defaultMaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		case allowEmpty && errors.Is(err, io.EOF):
			return true
		default:
			Error(w, http.StatusBadRequest, "invalid request body")
		}
		return false
	}
	return true
}
