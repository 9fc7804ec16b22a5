package risk

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/ashureev/vish/internal/domain"
)

// DefaultRemoteTimeout bounds a delegated assessment.
const DefaultRemoteTimeout = 3 * time.Second

// Remote is a richer assessment policy hosted elsewhere. Implementations may
// fail for any reason; failures are never propagated by Assessor.
type Remote interface {
	// Available reports whether a call is worth attempting right now.
	Available() bool
	Assess(ctx context.Context, message string) (domain.RiskAssessment, error)
}

// Assessor delegates to a Remote when one is available and falls back to the
// local Heuristic otherwise.
type Assessor struct {
	local   Heuristic
	remote  Remote
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Assessor.
type Option func(*Assessor)

// WithRemote sets the delegated assessor.
func WithRemote(r Remote) Option {
	return func(a *Assessor) { a.remote = r }
}

// WithTimeout bounds each remote call.
func WithTimeout(d time.Duration) Option {
	return func(a *Assessor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assessor) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAssessor creates an Assessor using the canonical keyword lists.
func NewAssessor(opts ...Option) *Assessor {
	a := &Assessor{
		timeout: DefaultRemoteTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assess never fails. A remote verdict is authoritative, except that it is
// never allowed to report less than a severe escalation when the local lists
// match a severe phrase. A confidence outside [0, 1] discards the verdict.
func (a *Assessor) Assess(ctx context.Context, message string) domain.RiskAssessment {
	local := a.local.Assess(message)
	if a.remote == nil || !a.remote.Available() {
		return local
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	remote, err := a.remote.Assess(callCtx, message)
	if err != nil {
		a.logger.Warn("remote risk assessment failed, using local heuristic",
			"call", "assess_crisis_level",
			"error", err,
		)
		return local
	}
	if !remote.Level.Valid() {
		a.logger.Warn("remote risk assessment returned unknown level, using local heuristic",
			"call", "assess_crisis_level",
			"level", remote.Level,
		)
		return local
	}
	if math.IsNaN(remote.Confidence) || remote.Confidence < 0 || remote.Confidence > 1 {
		a.logger.Warn("remote risk assessment returned confidence out of range, using local heuristic",
			"call", "assess_crisis_level",
			"confidence", remote.Confidence,
		)
		return local
	}
	if local.Level == domain.RiskSevere && (remote.Level != domain.RiskSevere || !remote.ShouldEscalate) {
		a.logger.Warn("remote risk assessment below local severe match, keeping severe",
			"call", "assess_crisis_level",
			"remote_level", remote.Level,
			"remote_escalate", remote.ShouldEscalate,
		)
		return local
	}
	remote.Source = "remote"
	return remote
}
