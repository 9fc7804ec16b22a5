package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashureev/vish/internal/domain"
)

// RemoteAssessor adapts the assess_crisis_level tool to the risk package's
// Remote interface.
type RemoteAssessor struct {
	client *Client
}

// NewRemoteAssessor wraps c.
func NewRemoteAssessor(c *Client) *RemoteAssessor {
	return &RemoteAssessor{client: c}
}

// Available reports whether the underlying client can take calls.
func (r *RemoteAssessor) Available() bool {
	return r.client != nil && r.client.Available()
}

// Assess calls assess_crisis_level and converts its result.
func (r *RemoteAssessor) Assess(ctx context.Context, message string) (domain.RiskAssessment, error) {
	raw, err := r.client.InvokeTool(ctx, ToolAssessCrisis, map[string]any{"message": message})
	if err != nil {
		return domain.RiskAssessment{}, err
	}
	var res CrisisAssessment
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.RiskAssessment{}, fmt.Errorf("%w: %s: decode result: %w", ErrRemoteCallFailed, ToolAssessCrisis, err)
	}
	level := domain.RiskLevel(res.CrisisLevel)
	if !level.Valid() {
		return domain.RiskAssessment{}, fmt.Errorf("%w: %s: unknown level %q", ErrRemoteCallFailed, ToolAssessCrisis, res.CrisisLevel)
	}
	return domain.RiskAssessment{
		Level:          level,
		Confidence:     res.Confidence,
		ShouldEscalate: res.ShouldEscalateToCrisisAgent,
	}, nil
}
