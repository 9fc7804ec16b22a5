package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/vish/internal/domain"
)

// Selection reasons recorded in the agent history.
const (
	ReasonCrisisDetected = "crisis-detected"
	ReasonKeywordMatch   = "keyword-match"
	ReasonDefault        = "default"
	// ReasonCrisisHold keeps an active crisis persona for a message that
	// would otherwise route elsewhere.
	ReasonCrisisHold = "crisis-hold"
)

// Assessor classifies a message's risk. It must not fail.
type Assessor interface {
	Assess(ctx context.Context, message string) domain.RiskAssessment
}

// Selection is the outcome of SelectAgent.
type Selection struct {
	Profile    Profile
	Reason     string
	Assessment domain.RiskAssessment
	// Switched is true when the active persona changed.
	Switched bool
	// Previous is the persona that was active before this selection, if any.
	Previous *Profile
	// Handoff is the record appended when Switched is true.
	Handoff *domain.HandoffRecord
	// HandoffNote is the transition note for the prompt, or "".
	HandoffNote string
}

// Metadata describes the active persona for API responses.
type Metadata struct {
	AgentName    string                   `json:"agentName"`
	AgentRole    string                   `json:"agentRole"`
	AgentEmotion string                   `json:"agentEmotion"`
	Expertise    []string                 `json:"expertise"`
	AgentHistory []domain.SelectionRecord `json:"agentHistory"`
}

// Router owns one session's routing state.
type Router struct {
	catalog   *Catalog
	assessor  Assessor
	sessionID string
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	active   *Profile
	history  []domain.SelectionRecord
	handoffs []domain.HandoffRecord
	lastRisk domain.RiskLevel
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithSessionID tags log lines with the owning session.
func WithSessionID(id string) RouterOption {
	return func(r *Router) { r.sessionID = id }
}

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// NewRouter creates a Router with no active persona.
func NewRouter(catalog *Catalog, assessor Assessor, opts ...RouterOption) *Router {
	r := &Router{
		catalog:  catalog,
		assessor: assessor,
		logger:   slog.Default(),
		now:      time.Now,
		lastRisk: domain.RiskLow,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the router's persona catalog.
func (r *Router) Catalog() *Catalog { return r.catalog }

// SelectAgent assesses message and picks a persona: crisis on escalation,
// then technique triggers, then grounding triggers, then the general persona.
// An active crisis persona is kept until the session is cleared.
func (r *Router) SelectAgent(ctx context.Context, message string) Selection {
	// Assessment may call out to the network, so it runs unlocked.
	assessment := r.assessor.Assess(ctx, message)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRisk = assessment.Level
	kind, reason := r.route(message, assessment)
	profile := r.catalog.Profile(kind)

	sel := Selection{Profile: profile, Reason: reason, Assessment: assessment}
	if r.active != nil {
		prev := *r.active
		sel.Previous = &prev
	}
	now := r.now().UTC()
	if r.active == nil || r.active.Kind != kind {
		sel.Switched = r.active != nil
		if r.active != nil {
			rec := domain.HandoffRecord{
				FromRole:  r.active.Role,
				ToRole:    profile.Role,
				Reason:    reason,
				Timestamp: now,
			}
			r.handoffs = append(r.handoffs, rec)
			sel.Handoff = &rec
		}
		r.active = &profile
	}
	r.history = append(r.history, domain.SelectionRecord{Agent: kind.String(), Reason: reason, Timestamp: now})
	sel.HandoffNote = r.handoffNoteLocked()

	r.logger.Info("agent selected",
		"session_id", r.sessionID,
		"agent_role", profile.Role,
		"reason", reason,
		"risk_level", assessment.Level,
		"risk_source", assessment.Source,
	)
	return sel
}

func (r *Router) route(message string, a domain.RiskAssessment) (Kind, string) {
	if a.ShouldEscalate {
		return Crisis, ReasonCrisisDetected
	}
	if r.active != nil && r.active.Kind == Crisis {
		return Crisis, ReasonCrisisHold
	}
	lower := normalize(message)
	for _, k := range Kinds() {
		switch k {
		case Crisis:
			// Only the assessment routes to crisis.
		case Technique, Grounding:
			if matchesAny(lower, r.catalog.Profile(k).Triggers) {
				return k, ReasonKeywordMatch
			}
		case General:
			return General, ReasonDefault
		}
	}
	return General, ReasonDefault
}

// Active returns the active persona, if any.
func (r *Router) Active() (Profile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return Profile{}, false
	}
	return *r.active, true
}

// Emotion returns the active persona's emotion tag.
func (r *Router) Emotion() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentLocked().Emotion
}

// Metadata describes the active persona and the selection history.
func (r *Router) Metadata() Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.currentLocked()
	history := make([]domain.SelectionRecord, len(r.history))
	copy(history, r.history)
	return Metadata{
		AgentName:    p.Name,
		AgentRole:    p.Role,
		AgentEmotion: p.Emotion,
		Expertise:    p.Expertise,
		AgentHistory: history,
	}
}

// HandoffNote returns a note for the active persona when the previous
// selection chose a different one, or "".
func (r *Router) HandoffNote() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handoffNoteLocked()
}

func (r *Router) handoffNoteLocked() string {
	if len(r.history) < 2 || r.active == nil {
		return ""
	}
	prev := r.history[len(r.history)-2]
	if prev.Agent == r.active.Key() {
		return ""
	}
	name := prev.Agent
	if k, ok := ParseKind(prev.Agent); ok {
		name = r.catalog.Profile(k).Name
	}
	return fmt.Sprintf("User was previously speaking with the %s. Acknowledge the transition smoothly and build on any previous conversation context.", name)
}

// Handoffs returns every recorded persona change.
func (r *Router) Handoffs() []domain.HandoffRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.HandoffRecord, len(r.handoffs))
	copy(out, r.handoffs)
	return out
}

// LastRiskLevel returns the most recent assessment level.
func (r *Router) LastRiskLevel() domain.RiskLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRisk
}

// Reset forgets all routing state.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = nil
	r.history = nil
	r.handoffs = nil
	r.lastRisk = domain.RiskLow
}

func (r *Router) currentLocked() Profile {
	if r.active == nil {
		return r.catalog.Profile(General)
	}
	return *r.active
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

func normalize(s string) string {
	return apostrophes.Replace(strings.ToLower(s))
}

func matchesAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
