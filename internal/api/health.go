package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/vish/internal/config"
	"github.com/ashureev/vish/internal/mcp"
)

const defaultHealthCheckTimeout = 5 * time.Second

// Pinger verifies a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KnowledgeStatus reports the knowledge service link.
type KnowledgeStatus interface {
	State() mcp.State
	BreakerState() string
}

// HealthHandler handles the index and health endpoints.
type HealthHandler struct {
	db        Pinger
	knowledge KnowledgeStatus
	cfg       *config.Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewHealthHandler creates a HealthHandler. knowledge may be nil.
func NewHealthHandler(db Pinger, knowledge KnowledgeStatus, cfg *config.Config, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{db: db, knowledge: knowledge, cfg: cfg, logger: logger, now: time.Now}
}

// RegisterHealth registers the index and health routes.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/", h.Index)
	r.Get("/health", h.Health)
}

// Index lists the public endpoints.
func (h *HealthHandler) Index(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"message":   "Vish AI API is running!",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
		"endpoints": []string{
			"/chat",
			"/chat-audio",
			"/upload-document",
			"/delete-document/:id",
			"/documents",
			"/clear-memory",
			"/agents",
			"/tools/call",
			"/sessions/:id/transcript",
			"/ws/chat",
			"/health",
			"/metrics",
		},
	})
}

// Health reports generation credentials and dependency state. Missing
// credentials mark the service unhealthy; an unreachable database degrades it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultHealthCheckTimeout)
	defer cancel()

	gen := h.cfg.Generation
	status := "healthy"
	if !h.cfg.GenerationConfigured() {
		status = "unhealthy"
	}
	checks := map[string]string{"api": "ok"}
	statusCode := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Error("Health check failed", "call", "db_ping", "error", err)
			status = "degraded"
			checks["database"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}
	if h.knowledge != nil {
		checks["knowledge"] = h.knowledge.State().String()
		checks["knowledge_breaker"] = h.knowledge.BreakerState()
	}

	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"environment": map[string]bool{
			"hasApiKey":         gen.APIKey != "",
			"hasInstanceName":   gen.InstanceName != "" || gen.BaseURL != "",
			"hasDeploymentName": gen.Deployment != "",
		},
		"checks":    checks,
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}
