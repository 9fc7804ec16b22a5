package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/vish/internal/chat"
	"github.com/ashureev/vish/internal/domain"
	"github.com/ashureev/vish/internal/identity"
	"github.com/ashureev/vish/internal/prompt"
)

// wsMessage is a client frame.
type wsMessage struct {
	Type      string              `json:"type"`
	Message   string              `json:"message,omitempty"`
	SessionID string              `json:"sessionId,omitempty"`
	Mode      string              `json:"mode,omitempty"`
	UserInfo  *domain.UserProfile `json:"userInfo,omitempty"`
	UseRAG    *bool               `json:"useRAG,omitempty"`
}

// wsReply is a server frame.
type wsReply struct {
	Type  string         `json:"type"`
	Error string         `json:"error,omitempty"`
	Data  *chat.Response `json:"data,omitempty"`
}

// WebSocketHandler serves chat over a websocket. Frames are handled in
// order, one reply per chat frame.
type WebSocketHandler struct {
	svc            *chat.Service
	limiter        *RateLimiter
	conns          *connections
	allowedOrigins []string
	isDev          bool
	logger         *slog.Logger
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(svc *chat.Service, limiter *RateLimiter, allowedOrigins []string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		svc:            svc,
		limiter:        limiter,
		conns:          newConnections(logger),
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		logger:         logger,
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	h.logger.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(defaultMaxRequestBodySize)

	h.conns.register(userID, sessionID, ws)
	defer h.conns.unregister(userID, sessionID, ws)

	h.readLoop(r.Context(), ws, r, userID, sessionID)
	h.logger.Info("WebSocket chat ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", strings.Join(h.allowedOrigins, ","))
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, r *http.Request, userID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				h.logger.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.send(ctx, ws, wsReply{Type: "error", Error: "invalid message"})
			continue
		}

		sid := sessionID
		if strings.TrimSpace(msg.SessionID) != "" {
			if sid, err = identity.NormalizeSessionID(msg.SessionID); err != nil {
				h.send(ctx, ws, wsReply{Type: "error", Error: err.Error()})
				continue
			}
		}

		switch msg.Type {
		case "chat":
			h.handleChat(ctx, ws, r, userID, sid, msg)
		case "clear":
			h.svc.Clear(sid)
			h.send(ctx, ws, wsReply{Type: "cleared"})
		case "ping":
			h.send(ctx, ws, wsReply{Type: "pong"})
		default:
			h.send(ctx, ws, wsReply{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) handleChat(ctx context.Context, ws *websocket.Conn, r *http.Request, userID, sessionID string, msg wsMessage) {
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		h.send(ctx, ws, wsReply{Type: "error", Error: "rate limit exceeded"})
		return
	}
	if strings.TrimSpace(msg.Message) == "" {
		h.send(ctx, ws, wsReply{Type: "error", Error: "message is required"})
		return
	}

	useRAG := true
	if msg.UseRAG != nil {
		useRAG = *msg.UseRAG
	}
	resp, err := h.svc.Handle(ctx, chat.Request{
		SessionID: sessionID,
		UserID:    userID,
		Channel:   "chat_ws",
		Message:   msg.Message,
		Mode:      prompt.ParseMode(msg.Mode),
		Profile:   msg.UserInfo,
		UseRAG:    useRAG,
	})
	if err != nil {
		h.send(ctx, ws, wsReply{Type: "error", Error: "Model call failed", Data: &resp})
		return
	}
	h.send(ctx, ws, wsReply{Type: "reply", Data: &resp})
}

func (h *WebSocketHandler) send(ctx context.Context, ws *websocket.Conn, v wsReply) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to encode websocket frame", "error", err)
		return
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil && ctx.Err() == nil {
		h.logger.Debug("WebSocket write error", "error", err)
	}
}

// connections tracks one socket per user and session; a newer socket for the
// same pair replaces the older one.
type connections struct {
	mu     sync.Mutex
	active map[string]map[string]*websocket.Conn
	logger *slog.Logger
}

func newConnections(logger *slog.Logger) *connections {
	return &connections{active: make(map[string]map[string]*websocket.Conn), logger: logger}
}

func (c *connections) register(userID, sessionID string, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.active[userID]; !ok {
		c.active[userID] = make(map[string]*websocket.Conn)
	}
	if existing, ok := c.active[userID][sessionID]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	c.active[userID][sessionID] = conn
	c.logger.Info("WebSocket chat registered", "user_id", userID, "session_id", sessionID)
}

func (c *connections) unregister(userID, sessionID string, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sessions, ok := c.active[userID]
	if !ok {
		return
	}
	if current, ok := sessions[sessionID]; ok && current == conn {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(c.active, userID)
		}
	}
}

func (c *connections) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.active {
		n += len(s)
	}
	return n
}
