// Package session keeps per-conversation routing state and memory.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/vish/internal/agent"
	"github.com/ashureev/vish/internal/metrics"
)

// Session bundles the state owned by one conversation.
type Session struct {
	ID        string
	Router    *agent.Router
	Memory    *Memory
	CreatedAt time.Time
}

// RouterFactory builds the router for a new session.
type RouterFactory func(sessionID string) *agent.Router

// Registry maps session ids to live sessions.
type Registry struct {
	newRouter RouterFactory
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry(newRouter RouterFactory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		newRouter: newRouter,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// GetOrCreate returns the session for id, creating it on first use. Two
// concurrent first messages for the same id get the same session.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := &Session{
		ID:        id,
		Router:    r.newRouter(id),
		Memory:    &Memory{},
		CreatedAt: time.Now().UTC(),
	}
	r.sessions[id] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.logger.Info("session created", "session_id", id)
	return s
}

// Get returns the session for id without creating it.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Clear drops the session's memory and routing state. Clearing an unknown
// id is a no-op. It reports whether a session existed.
func (r *Registry) Clear(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.logger.Info("session cleared", "session_id", id)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
