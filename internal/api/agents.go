package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/vish/internal/agent"
	"github.com/ashureev/vish/internal/mcp"
)

// ToolInvoker forwards tool calls to the knowledge service.
type ToolInvoker interface {
	Available() bool
	InvokeTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)
}

// AgentsHandler exposes the persona catalog and the tool proxy.
type AgentsHandler struct {
	catalog *agent.Catalog
	tools   ToolInvoker
	logger  *slog.Logger
}

// NewAgentsHandler creates an AgentsHandler. tools may be nil.
func NewAgentsHandler(catalog *agent.Catalog, tools ToolInvoker, logger *slog.Logger) *AgentsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentsHandler{catalog: catalog, tools: tools, logger: logger}
}

// RegisterRoutes registers agent and tool routes.
func (h *AgentsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/agents", h.List)
	r.Get("/agents/{role}", h.Get)
	r.Post("/tools/call", h.CallTool)
}

// List returns every persona in routing priority order.
func (h *AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{"agents": h.catalog.All()})
}

// Get returns one persona by role or key.
func (h *AgentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.ByRole(chi.URLParam(r, "role"))
	if errors.Is(err, agent.ErrUnknownAgent) {
		Error(w, http.StatusNotFound, "agent not found")
		return
	}
	JSON(w, http.StatusOK, p)
}

// CallTool proxies a tool call to the knowledge service.
func (h *AgentsHandler) CallTool(w http.ResponseWriter, r *http.Request) {
	var req mcp.ToolCall
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if !mcp.IsKnownTool(req.Name) {
		Error(w, http.StatusBadRequest, "unknown tool")
		return
	}
	if h.tools == nil || !h.tools.Available() {
		Error(w, http.StatusServiceUnavailable, "knowledge service unavailable")
		return
	}

	result, err := h.tools.InvokeTool(r.Context(), req.Name, req.Arguments)
	switch {
	case errors.Is(err, mcp.ErrUnknownTool):
		Error(w, http.StatusBadRequest, "unknown tool")
		return
	case errors.Is(err, mcp.ErrNotConnected), errors.Is(err, mcp.ErrCircuitOpen):
		Error(w, http.StatusServiceUnavailable, "knowledge service unavailable")
		return
	case err != nil:
		h.logger.Warn("Tool call failed", "tool", req.Name, "call", "invoke_tool", "error", err)
		Error(w, http.StatusBadGateway, "tool call failed")
		return
	}
	JSON(w, http.StatusOK, map[string]json.RawMessage{"result": result})
}
