package mcp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	serverName    = "vish-knowledge-server"
	serverVersion = "1.0.0"
	uriScheme     = "vish://"
)

var resources = []Resource{
	{URI: uriScheme + "crisis-resources", Name: "Crisis Resources & Emergency Protocols", Description: "Emergency hotlines, crisis intervention protocols", MimeType: "application/json"},
	{URI: uriScheme + "coping-strategies", Name: "Evidence-Based Coping Strategies", Description: "Immediate, short-term, and long-term coping mechanisms", MimeType: "application/json"},
	{URI: uriScheme + "cbt-techniques", Name: "CBT Techniques", Description: "Cognitive Behavioral Therapy methods with step-by-step guidance", MimeType: "application/json"},
	{URI: uriScheme + "mental-health-topics", Name: "Mental Health Education", Description: "Information on conditions, symptoms, and treatments", MimeType: "application/json"},
}

// Server serves a KnowledgeBase over HTTP.
type Server struct {
	kb     *KnowledgeBase
	logger *slog.Logger
	tools  []Tool
}

// NewServer creates a Server for kb.
func NewServer(kb *KnowledgeBase, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{kb: kb, logger: logger, tools: toolCatalog(kb)}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Route("/mcp", func(r chi.Router) {
		r.Get("/resources", s.listResources)
		r.Get("/resources/{resource}", s.readResource)
		r.Get("/tools", s.listTools)
		r.Post("/tools/call", s.callTool)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Health{
		Status:       "healthy",
		Server:       serverName,
		Version:      serverVersion,
		Capabilities: []string{"resources", "tools"},
		Resources:    len(resources),
		Tools:        len(s.tools),
	})
}

func (s *Server) listResources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, resourceList{Resources: resources})
}

func (s *Server) readResource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "resource")

	var content any
	switch name {
	case "crisis-resources":
		content = map[string]any{
			"crisisResources": s.kb.CrisisResources,
			"crisisProtocol":  s.kb.CrisisProtocol,
		}
	case "coping-strategies":
		content = s.kb.CopingStrategies
	case "cbt-techniques":
		content = s.kb.CBTTechniques
	case "mental-health-topics":
		content = s.kb.Topics
	default:
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uri": uriScheme + name, "content": content})
}

func (s *Server) listTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toolList{Tools: s.tools})
}

func (s *Server) callTool(w http.ResponseWriter, r *http.Request) {
	var call ToolCall
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&call); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.kb.Call(call.Name, call.Arguments)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"result": result})
	case errors.Is(err, ErrUnknownTool), errors.Is(err, ErrInvalidArguments):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTechniqueNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("tool call failed", "tool", call.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "tool call failed")
	}
}

func toolCatalog(kb *KnowledgeBase) []Tool {
	techniques, _ := json.Marshal(kb.TechniqueIDs())
	return []Tool{
		{
			Name:        ToolSearchTopics,
			Description: "Search mental health knowledge base",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Search query"},"limit":{"type":"number","default":5}},"required":["query"]}`),
		},
		{
			Name:        ToolCrisisResources,
			Description: "Get crisis resources by country and type",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"country":{"type":"string","default":"US"},"crisisType":{"type":"string","enum":["suicide","emergency","veterans","lgbtq"]}}}`),
		},
		{
			Name:        ToolCopingStrategies,
			Description: "Recommend coping strategies for specific conditions",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"condition":{"type":"string","description":"Mental health challenge"},"urgency":{"type":"string","enum":["immediate","short-term","long-term"],"default":"short-term"},"limit":{"type":"number","default":3}},"required":["condition"]}`),
		},
		{
			Name:        ToolCBTTechnique,
			Description: "Get CBT technique with steps",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"technique":{"type":"string","enum":` + string(techniques) + `}},"required":["technique"]}`),
		},
		{
			Name:        ToolAssessCrisis,
			Description: "Assess crisis level from user message",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"message":{"type":"string","description":"User message to analyze"}},"required":["message"]}`),
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
