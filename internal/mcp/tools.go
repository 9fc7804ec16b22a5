package mcp

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ashureev/vish/internal/risk"
)

const (
	defaultCountry     = "US"
	defaultUrgency     = "short-term"
	defaultSearchLimit = 5
	defaultCopingLimit = 3
	urgentNote         = "If this is a life-threatening emergency, call emergency services immediately."
)

var (
	// ErrInvalidArguments is returned when a required tool argument is missing.
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrTechniqueNotFound is returned for unknown CBT technique ids.
	ErrTechniqueNotFound = errors.New("cbt technique not found")
)

// CrisisResourceResult is the result of get_crisis_resources.
type CrisisResourceResult struct {
	Country    string                `json:"country"`
	CrisisType string                `json:"crisisType"`
	Resources  map[string]CrisisLine `json:"resources"`
	UrgentNote string                `json:"urgentNote"`
}

// CopingResult is the result of recommend_coping_strategies.
type CopingResult struct {
	Condition       string           `json:"condition"`
	Urgency         string           `json:"urgency"`
	StrategiesCount int              `json:"strategiesCount"`
	Strategies      []CopingStrategy `json:"strategies"`
}

// Call dispatches a tool by name.
func (kb *KnowledgeBase) Call(name string, args map[string]any) (any, error) {
	switch name {
	case ToolSearchTopics:
		query := stringArg(args, "query", "")
		if query == "" {
			return nil, fmt.Errorf("%w: query is required", ErrInvalidArguments)
		}
		return kb.SearchTopics(query, intArg(args, "limit", defaultSearchLimit)), nil
	case ToolCrisisResources:
		return kb.CrisisResourcesFor(stringArg(args, "country", defaultCountry), stringArg(args, "crisisType", "")), nil
	case ToolCopingStrategies:
		condition := stringArg(args, "condition", "")
		if condition == "" {
			return nil, fmt.Errorf("%w: condition is required", ErrInvalidArguments)
		}
		return kb.RecommendCoping(condition, stringArg(args, "urgency", defaultUrgency), intArg(args, "limit", defaultCopingLimit)), nil
	case ToolCBTTechnique:
		id := stringArg(args, "technique", "")
		t, ok := kb.Technique(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrTechniqueNotFound, id)
		}
		return t, nil
	case ToolAssessCrisis:
		return kb.AssessCrisis(stringArg(args, "message", "")), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

// SearchTopics scores each topic against query. A topic named in the query,
// or whose name contains the query, scores 10; a description containing the
// query scores 5; a matching symptom scores 3.
func (kb *KnowledgeBase) SearchTopics(query string, limit int) TopicSearch {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))

	results := []TopicResult{}
	for _, t := range kb.Topics {
		name := strings.ToLower(t.Name)
		score := 0
		if q != "" && (strings.Contains(name, q) || strings.Contains(q, name)) {
			score += 10
		}
		if q != "" && strings.Contains(strings.ToLower(t.Description), q) {
			score += 5
		}
		for _, s := range t.Symptoms {
			if q != "" && strings.Contains(strings.ToLower(s), q) {
				score += 3
				break
			}
		}
		if score == 0 {
			continue
		}
		results = append(results, TopicResult{
			Topic:          t.Name,
			Description:    t.Description,
			Symptoms:       t.Symptoms,
			Types:          t.Types,
			Treatments:     t.Treatments,
			SelfHelp:       t.SelfHelp,
			RelevanceScore: score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return TopicSearch{Query: query, ResultsCount: len(results), Results: results}
}

// CrisisResourcesFor returns hotlines for country, falling back to US. When
// crisisType names a known line only that line and emergency are returned.
func (kb *KnowledgeBase) CrisisResourcesFor(country, crisisType string) CrisisResourceResult {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		country = defaultCountry
	}
	lines, ok := kb.CrisisResources[country]
	if !ok {
		lines = kb.CrisisResources[defaultCountry]
	}

	filtered := lines
	if line, ok := lines[crisisType]; ok && crisisType != "" {
		filtered = map[string]CrisisLine{crisisType: line}
		if e, ok := lines["emergency"]; ok {
			filtered["emergency"] = e
		}
	}
	if crisisType == "" {
		crisisType = "all"
	}
	return CrisisResourceResult{
		Country:    country,
		CrisisType: crisisType,
		Resources:  filtered,
		UrgentNote: urgentNote,
	}
}

// RecommendCoping returns up to limit strategies of the given urgency that
// apply to condition.
func (kb *KnowledgeBase) RecommendCoping(condition, urgency string, limit int) CopingResult {
	if limit <= 0 {
		limit = defaultCopingLimit
	}
	strategies, ok := kb.CopingStrategies[urgency]
	if !ok {
		urgency = defaultUrgency
		strategies = kb.CopingStrategies[defaultUrgency]
	}

	c := strings.ToLower(strings.TrimSpace(condition))
	relevant := []CopingStrategy{}
	for _, s := range strategies {
		if len(relevant) == limit {
			break
		}
		for _, a := range s.ApplicableTo {
			a = strings.ToLower(a)
			if strings.Contains(a, c) || strings.Contains(c, a) {
				relevant = append(relevant, s)
				break
			}
		}
	}
	return CopingResult{Condition: condition, Urgency: urgency, StrategiesCount: len(relevant), Strategies: relevant}
}

// AssessCrisis classifies message with the shared keyword heuristic.
func (kb *KnowledgeBase) AssessCrisis(message string) CrisisAssessment {
	a := risk.Heuristic{}.Assess(message)
	res := CrisisAssessment{
		CrisisLevel:                 string(a.Level),
		Confidence:                  a.Confidence,
		ShouldEscalateToCrisisAgent: a.ShouldEscalate,
	}
	if p, ok := kb.CrisisProtocol[string(a.Level)]; ok {
		res.Protocol = &p
	}
	return res
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return def
}
