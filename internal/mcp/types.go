// Package mcp implements both sides of the knowledge service: an HTTP tool and
// resource server, and the client the chat service uses to reach it.
package mcp

import "encoding/json"

// Tool names served by the knowledge service.
const (
	ToolSearchTopics     = "search_mental_health_topics"
	ToolCrisisResources  = "get_crisis_resources"
	ToolCopingStrategies = "recommend_coping_strategies"
	ToolCBTTechnique     = "get_cbt_technique"
	ToolAssessCrisis     = "assess_crisis_level"
)

// KnownTools lists every tool name the client will forward.
var KnownTools = []string{
	ToolSearchTopics,
	ToolCrisisResources,
	ToolCopingStrategies,
	ToolCBTTechnique,
	ToolAssessCrisis,
}

// IsKnownTool reports whether name is one of KnownTools.
func IsKnownTool(name string) bool {
	for _, t := range KnownTools {
		if t == name {
			return true
		}
	}
	return false
}

// Health is the body of GET /health.
type Health struct {
	Status       string   `json:"status"`
	Server       string   `json:"server"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	Resources    int      `json:"resources"`
	Tools        int      `json:"tools"`
}

// Resource describes a readable resource collection.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

// Tool describes a callable tool.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolCall is the body of POST /mcp/tools/call.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type toolResult struct {
	Result json.RawMessage `json:"result"`
}

type resourceList struct {
	Resources []Resource `json:"resources"`
}

type resourceContent struct {
	URI     string          `json:"uri"`
	Content json.RawMessage `json:"content"`
}

type toolList struct {
	Tools []Tool `json:"tools"`
}

// CrisisAssessment is the result of assess_crisis_level.
type CrisisAssessment struct {
	CrisisLevel                 string    `json:"crisisLevel"`
	Confidence                  float64   `json:"confidence"`
	Protocol                    *Protocol `json:"protocol,omitempty"`
	ShouldEscalateToCrisisAgent bool      `json:"shouldEscalateToCrisisAgent"`
}

// TopicSearch is the result of search_mental_health_topics.
type TopicSearch struct {
	Query        string        `json:"query"`
	ResultsCount int           `json:"resultsCount"`
	Results      []TopicResult `json:"results"`
}
