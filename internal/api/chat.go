package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/vish/internal/chat"
	"github.com/ashureev/vish/internal/domain"
	"github.com/ashureev/vish/internal/identity"
	"github.com/ashureev/vish/internal/prompt"
)

// TranscriptReader lists archived turns and hand-offs.
type TranscriptReader interface {
	ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
	ListHandoffs(ctx context.Context, sessionID string) ([]domain.HandoffRecord, error)
}

// ChatRequest is the body of /chat and /chat-audio.
type ChatRequest struct {
	Message   string              `json:"message"`
	SessionID string              `json:"sessionId"`
	Mode      string              `json:"mode"`
	UserInfo  *domain.UserProfile `json:"userInfo"`
	UseRAG    *bool               `json:"useRAG"`
}

type chatErrorResponse struct {
	Error     string  `json:"error"`
	Message   string  `json:"message"`
	Reply     string  `json:"reply"`
	AudioData *string `json:"audioData,omitempty"`
}

// ChatHandler serves the conversational endpoints.
type ChatHandler struct {
	svc         *chat.Service
	limiter     *RateLimiter
	transcripts TranscriptReader
	logger      *slog.Logger
}

// NewChatHandler creates a ChatHandler. transcripts may be nil.
func NewChatHandler(svc *chat.Service, limiter *RateLimiter, transcripts TranscriptReader, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{svc: svc, limiter: limiter, transcripts: transcripts, logger: logger}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.Chat)
	r.Post("/chat-audio", h.ChatAudio)
	r.Post("/clear-memory", h.ClearMemory)
	r.Get("/sessions/{id}/transcript", h.Transcript)
}

// Chat answers a text message.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	h.serveChat(w, r, false)
}

// ChatAudio answers with text and synthesized speech.
func (h *ChatHandler) ChatAudio(w http.ResponseWriter, r *http.Request) {
	h.serveChat(w, r, true)
}

func (h *ChatHandler) serveChat(w http.ResponseWriter, r *http.Request, audio bool) {
	if !h.allow(r) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req ChatRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	in, err := h.toServiceRequest(r, req)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if audio {
		in.Mode = prompt.ModeAudio
	}

	resp, err := h.svc.Handle(r.Context(), in)
	if err != nil {
		body := chatErrorResponse{Error: "Model call failed", Message: err.Error(), Reply: resp.Reply}
		if audio {
			body.Error = "Audio model call failed"
			empty := ""
			body.AudioData = &empty
		}
		JSON(w, http.StatusInternalServerError, body)
		return
	}
	JSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) toServiceRequest(r *http.Request, req ChatRequest) (chat.Request, error) {
	sessionID, err := requestSessionID(r, req.SessionID)
	if err != nil {
		return chat.Request{}, err
	}
	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}
	return chat.Request{
		SessionID: sessionID,
		UserID:    identity.UserIDFromContext(r.Context()),
		RequestID: chiMiddleware.GetReqID(r.Context()),
		Channel:   "chat_http",
		Message:   req.Message,
		Mode:      prompt.ParseMode(req.Mode),
		Profile:   req.UserInfo,
		UseRAG:    useRAG,
	}, nil
}

// requestSessionID prefers a session id carried in the body over the one the
// identity middleware resolved from the header.
func requestSessionID(r *http.Request, bodyID string) (string, error) {
	if strings.TrimSpace(bodyID) == "" {
		return identity.SessionIDFromContext(r.Context()), nil
	}
	return identity.NormalizeSessionID(bodyID)
}

// ClearMemory forgets a session. Unknown sessions succeed too.
func (h *ChatHandler) ClearMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if !decodeJSON(w, r, &req, true) {
		return
	}
	sessionID, err := requestSessionID(r, req.SessionID)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	h.svc.Clear(sessionID)
	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Memory cleared successfully",
	})
}

// Transcript returns a session's archived turns.
func (h *ChatHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		Error(w, http.StatusNotFound, "transcripts are not enabled")
		return
	}
	sessionID, err := identity.NormalizeSessionID(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	turns, err := h.transcripts.ListTurns(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("Failed to list transcript", "session_id", sessionID, "call", "list_turns", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	handoffs, err := h.transcripts.ListHandoffs(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Failed to list hand-offs", "session_id", sessionID, "call", "list_handoffs", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": sessionID,
		"turns":     turns,
		"handoffs":  handoffs,
	})
}

func (h *ChatHandler) allow(r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(clientKey(r))
}

func clientKey(r *http.Request) string {
	if id := identity.UserIDFromContext(r.Context()); id != "" {
		return id
	}
	return identity.IPFromRequest(r)
}
