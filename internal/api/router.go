package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/vish/internal/identity"
	"github.com/ashureev/vish/internal/middleware"
)

// Handlers groups the route handlers mounted by NewRouter. Nil handlers are
// skipped.
type Handlers struct {
	Health    *HealthHandler
	Chat      *ChatHandler
	Documents *DocumentsHandler
	Agents    *AgentsHandler
	WebSocket *WebSocketHandler
}

// NewRouter builds the HTTP router.
func NewRouter(h Handlers, allowedOrigins []string, isDev bool) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(allowedOrigins))
	r.Use(identity.Middleware(isDev))

	r.Handle("/metrics", promhttp.Handler())

	if h.Health != nil {
		h.Health.RegisterHealth(r)
	}
	if h.Chat != nil {
		h.Chat.RegisterRoutes(r)
	}
	if h.Documents != nil {
		h.Documents.RegisterRoutes(r)
	}
	if h.Agents != nil {
		h.Agents.RegisterRoutes(r)
	}
	if h.WebSocket != nil {
		r.Get("/ws/chat", h.WebSocket.ServeHTTP)
	}
	return r
}
