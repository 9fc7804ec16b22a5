// Package chat runs the per-message pipeline: risk assessment, persona
// selection, prompt composition, reply generation and memory.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/vish/internal/agent"
	"github.com/ashureev/vish/internal/domain"
	"github.com/ashureev/vish/internal/generation"
	"github.com/ashureev/vish/internal/metrics"
	"github.com/ashureev/vish/internal/prompt"
	"github.com/ashureev/vish/internal/risk"
	"github.com/ashureev/vish/internal/session"
)

// ErrGeneration wraps any reply failure that is not a content-filter refusal.
var ErrGeneration = errors.New("reply generation failed")

// Archive persists turns beyond the in-memory session.
type Archive interface {
	AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) error
	RecordHandoff(ctx context.Context, sessionID string, h domain.HandoffRecord) error
}

// Request is one user message.
type Request struct {
	SessionID string
	UserID    string
	RequestID string
	Channel   string
	Message   string
	Mode      prompt.Mode
	Profile   *domain.UserProfile
	UseRAG    bool
}

// Response is what the client receives.
type Response struct {
	Reply     string           `json:"reply"`
	AudioData string           `json:"audioData,omitempty"`
	Sources   []string         `json:"sources"`
	IsCrisis  bool             `json:"isCrisis"`
	Resources []CrisisResource `json:"resources"`
	Emotion   string           `json:"emotion"`
	Agent     agent.Metadata   `json:"agent"`
	Handoff   *agent.Handoff   `json:"handoff,omitempty"`
}

// Service wires the pipeline together.
type Service struct {
	sessions  *session.Registry
	composer  *prompt.Composer
	generator generation.Generator
	remote    *RemoteContext
	archive   Archive
	convLog   ConversationLogger
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRemoteContext enables knowledge service context.
func WithRemoteContext(rc *RemoteContext) Option {
	return func(s *Service) { s.remote = rc }
}

// WithArchive persists turns and hand-offs.
func WithArchive(a Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithConversationLogger records inbound and outbound messages.
func WithConversationLogger(l ConversationLogger) Option {
	return func(s *Service) {
		if l != nil {
			s.convLog = l
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(sessions *session.Registry, composer *prompt.Composer, gen generation.Generator, opts ...Option) *Service {
	s := &Service{
		sessions:  sessions,
		composer:  composer,
		generator: gen,
		convLog:   noopConversationLogger{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sessions returns the session registry.
func (s *Service) Sessions() *session.Registry { return s.sessions }

// Handle runs one message through the pipeline. A content-filter refusal is
// answered with a canned reply and no error. Other generation failures
// return a Response carrying SystemErrorReply together with an error
// wrapping ErrGeneration. Memory is only appended on success.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	sess := s.sessions.GetOrCreate(req.SessionID)
	router := sess.Router
	s.logEvent(req, "inbound", "chat_user_message", req.Message, nil)

	sel := router.SelectAgent(ctx, req.Message)
	metrics.AgentSelections.WithLabelValues(sel.Profile.Role, sel.Reason).Inc()
	metrics.RiskAssessments.WithLabelValues(string(sel.Assessment.Level), sel.Assessment.Source).Inc()

	var handoff *agent.Handoff
	if sel.Switched && sel.Previous != nil && sel.Handoff != nil {
		handoff = &agent.Handoff{
			ShouldHandoff: true,
			TargetRole:    sel.Profile.Role,
			Reason:        sel.Reason,
			Message:       agent.HandoffMessage(sel.Previous.Kind, sel.Profile.Kind),
		}
		s.recordHandoff(ctx, req.SessionID, *sel.Handoff)
	}

	built := s.composer.BuildPrompt(ctx, prompt.Input{
		Agent:           sel.Profile,
		Others:          router.Catalog().Others(sel.Profile.Kind),
		Profile:         req.Profile,
		Message:         req.Message,
		Mode:            req.Mode,
		HandoffNote:     sel.HandoffNote,
		RemoteKnowledge: s.remote.Gather(ctx, req.SessionID, sel.Profile.Kind, req.Message),
		UseRetrieval:    req.UseRAG,
	})
	metrics.RetrievedChunks.Observe(float64(len(built.Sources)))

	messages := make([]generation.Message, 0, sess.Memory.Len()+2)
	messages = append(messages, generation.Message{Role: generation.RoleSystem, Content: built.System})
	for _, t := range sess.Memory.Turns() {
		role := generation.RoleUser
		if t.Role == domain.RoleAssistant {
			role = generation.RoleAssistant
		}
		messages = append(messages, generation.Message{Role: role, Content: t.Text})
	}
	messages = append(messages, generation.Message{Role: generation.RoleUser, Content: req.Message})

	start := s.now()
	reply, err := s.generator.Generate(ctx, generation.Request{Messages: messages, Audio: req.Mode == prompt.ModeAudio})
	elapsed := s.now().Sub(start).Seconds()
	if err != nil {
		if errors.Is(err, generation.ErrContentFiltered) {
			metrics.GenerationLatency.WithLabelValues(string(req.Mode), "filtered").Observe(elapsed)
			s.logger.Warn("reply refused by content filter",
				"session_id", req.SessionID,
				"call", "generate",
				"agent_role", sel.Profile.Role,
			)
			resp := filteredResponse(req.Message)
			s.logEvent(req, "outbound", "chat_filtered_reply", resp.Reply, nil)
			return resp, nil
		}
		metrics.GenerationLatency.WithLabelValues(string(req.Mode), "error").Observe(elapsed)
		s.logger.Error("reply generation failed",
			"session_id", req.SessionID,
			"call", "generate",
			"agent_role", sel.Profile.Role,
			"error", err,
		)
		return Response{Reply: SystemErrorReply}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	metrics.GenerationLatency.WithLabelValues(string(req.Mode), "ok").Observe(elapsed)

	at := s.now().UTC()
	sess.Memory.Append(req.Message, reply.Text, at)
	s.archiveTurns(ctx, req.SessionID, req.Message, reply.Text, at)

	isCrisis := sel.Assessment.ShouldEscalate
	resp := Response{
		Reply:     reply.Text,
		AudioData: reply.AudioData,
		Sources:   make([]string, 0, len(built.Sources)),
		IsCrisis:  isCrisis,
		Resources: []CrisisResource{},
		Emotion:   router.Emotion(),
		Agent:     router.Metadata(),
		Handoff:   handoff,
	}
	for _, src := range built.Sources {
		resp.Sources = append(resp.Sources, src.Content)
	}
	if isCrisis {
		resp.Resources = CrisisResources()
	}

	s.logger.Info("reply generated",
		"session_id", req.SessionID,
		"agent_role", sel.Profile.Role,
		"risk_level", sel.Assessment.Level,
		"sources", len(built.Sources),
		"reply_length", len(reply.Text),
		"audio", reply.AudioData != "",
	)
	s.logEvent(req, "outbound", "chat_assistant_reply", reply.Text, map[string]any{
		"agent_role": sel.Profile.Role,
		"reason":     sel.Reason,
		"risk_level": string(sel.Assessment.Level),
	})
	return resp, nil
}

// Clear forgets a session. Unknown ids are a no-op.
func (s *Service) Clear(sessionID string) {
	s.sessions.Clear(sessionID)
}

func filteredResponse(message string) Response {
	isCrisis := risk.ContainsCrisisLanguage(message)
	resp := Response{
		Reply:     filteredReply,
		Sources:   []string{},
		IsCrisis:  isCrisis,
		Resources: []CrisisResource{},
		Emotion:   filteredEmotion,
		Agent:     agent.Metadata{AgentName: filteredAgentName, AgentRole: filteredAgentRole, AgentEmotion: filteredEmotion},
	}
	if isCrisis {
		resp.Reply = crisisFilteredReply
		resp.Resources = CrisisResources()
	}
	return resp
}

func (s *Service) archiveTurns(ctx context.Context, sessionID, userText, replyText string, at time.Time) {
	if s.archive == nil {
		return
	}
	for _, t := range []domain.Turn{
		{Role: domain.RoleUser, Text: userText, Timestamp: at},
		{Role: domain.RoleAssistant, Text: replyText, Timestamp: at},
	} {
		if err := s.archive.AppendTurn(ctx, sessionID, t); err != nil {
			s.logger.Warn("failed to archive turn", "session_id", sessionID, "call", "append_turn", "error", err)
			return
		}
	}
}

func (s *Service) recordHandoff(ctx context.Context, sessionID string, h domain.HandoffRecord) {
	if s.archive == nil {
		return
	}
	if err := s.archive.RecordHandoff(ctx, sessionID, h); err != nil {
		s.logger.Warn("failed to archive hand-off", "session_id", sessionID, "call", "record_handoff", "error", err)
	}
}

func (s *Service) logEvent(req Request, direction, eventType, content string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	if req.RequestID != "" {
		meta["request_id"] = req.RequestID
	}
	meta["mode"] = string(req.Mode)
	channel := req.Channel
	if channel == "" {
		channel = "chat_http"
	}
	s.convLog.Log(ConversationLogEvent{
		Timestamp:  s.now().UTC().Format(time.RFC3339Nano),
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Channel:    channel,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}
