// Package identity provides anonymous per-device identity primitives.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	AnonCookieName        = "vish_anon_id"
	SessionHeaderName     = "X-Vish-Session-ID"
	DefaultSessionIDValue = "default"
	anonCookieMaxAge      = 30 * 24 * time.Hour

	// MaxSessionIDLength caps a client session id, in characters.
	MaxSessionIDLength = 128
)

// ErrSessionIDTooLong is returned for session ids over MaxSessionIDLength.
var ErrSessionIDTooLong = errors.New("session id too long")

type contextKey int

const (
	userIDKey contextKey = iota
	sessionIDKey
)

var anonIDPattern = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the conversation session ID from the request
// context. Requests without one share the "default" session.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return DefaultSessionIDValue
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

// NormalizeSessionID trims a client-supplied session id. Session ids are
// opaque: any other content is kept as given. An absent id maps to
// DefaultSessionIDValue.
func NormalizeSessionID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultSessionIDValue, nil
	}
	if utf8.RuneCountInString(id) > MaxSessionIDLength {
		return "", ErrSessionIDTooLong
	}
	return id, nil
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		http.SetCookie(w, &http.Cookie{
			Name:     AnonCookieName,
			Value:    c.Value,
			Path:     "/",
			MaxAge:   int(anonCookieMaxAge.Seconds()),
			Expires:  time.Now().Add(anonCookieMaxAge),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   !isDev,
		})
		return c.Value, nil
	}

	id, err := generateAnonID()
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
	return id, nil
}

func sessionIDFromRequest(r *http.Request) (string, error) {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get("session_id")
	}
	return NormalizeSessionID(sid)
}

// Middleware injects anonymous per-device identity and per-request session ID.
// A sessionId carried in a request body takes precedence over the header.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := getOrCreateAnonID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}

			sessionID, err := sessionIDFromRequest(r)
			if err != nil {
				http.Error(w, `{"error":"session id too long"}`, http.StatusBadRequest)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, sessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP, used as the rate-limit key
// fallback.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
