package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/vish/internal/agent"
	"github.com/ashureev/vish/internal/mcp"
)

const (
	remoteUnavailableNote = "(Note: Some knowledge resources temporarily unavailable)"
	topicSearchMinLength  = 10
	topicSearchLimit      = 2
)

var cbtTechniques = []string{"thought-challenging", "behavioral-activation", "problem-solving", "exposure-therapy"}

// KnowledgeClient is the subset of the knowledge service client used for
// prompt context.
type KnowledgeClient interface {
	Available() bool
	InvokeTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)
}

// RemoteContext gathers persona-specific material from the knowledge
// service. It returns "" when the service is unavailable. The first failed
// call ends collection and appends a note instead.
type RemoteContext struct {
	client KnowledgeClient
	logger *slog.Logger
}

// NewRemoteContext creates a RemoteContext. A nil client disables it.
func NewRemoteContext(client KnowledgeClient, logger *slog.Logger) *RemoteContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteContext{client: client, logger: logger}
}

// Gather returns the knowledge block body for persona and message.
func (rc *RemoteContext) Gather(ctx context.Context, sessionID string, persona agent.Kind, message string) string {
	if rc == nil || rc.client == nil || !rc.client.Available() {
		return ""
	}

	var b strings.Builder
	call := func(label, tool string, args map[string]any, include func(json.RawMessage) bool) bool {
		raw, err := rc.client.InvokeTool(ctx, tool, args)
		if err != nil {
			rc.logger.Warn("knowledge context call failed",
				"session_id", sessionID,
				"call", tool,
				"error", err,
			)
			b.WriteString("\n")
			b.WriteString(remoteUnavailableNote)
			b.WriteString("\n")
			return false
		}
		if include != nil && !include(raw) {
			return true
		}
		fmt.Fprintf(&b, "\n%s:\n%s\n", label, indent(raw))
		return true
	}

	ok := true
	switch persona {
	case agent.Crisis:
		ok = call("CRISIS RESOURCES", mcp.ToolCrisisResources, map[string]any{"country": "US"}, nil)
	case agent.Technique:
		lower := strings.ToLower(message)
		for _, id := range cbtTechniques {
			if strings.Contains(lower, strings.Replace(id, "-", " ", 1)) {
				ok = call("CBT TECHNIQUE - "+id, mcp.ToolCBTTechnique, map[string]any{"technique": id}, nil)
				break
			}
		}
	case agent.Grounding:
		ok = call("RECOMMENDED COPING STRATEGIES", mcp.ToolCopingStrategies, map[string]any{
			"condition": "anxiety",
			"urgency":   "immediate",
			"limit":     3,
		}, nil)
	case agent.General:
	}

	if ok && len(message) > topicSearchMinLength {
		call("RELEVANT MENTAL HEALTH INFORMATION", mcp.ToolSearchTopics, map[string]any{
			"query": message,
			"limit": topicSearchLimit,
		}, hasTopicResults)
	}
	return strings.TrimSpace(b.String())
}

func hasTopicResults(raw json.RawMessage) bool {
	var res mcp.TopicSearch
	if err := json.Unmarshal(raw, &res); err != nil {
		return false
	}
	return res.ResultsCount > 0
}

func indent(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
