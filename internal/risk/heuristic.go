// Package risk classifies a message into a crisis-severity tier.
//
// The keyword lists here are the canonical ones: the local fallback and the
// knowledge server's assess_crisis_level tool both use them, so a remote
// verdict and a local verdict never disagree on the same phrase set.
package risk

import (
	"strings"

	"github.com/ashureev/vish/internal/domain"
)

// Confidence values reported for each tier.
const (
	SevereConfidence   = 0.95
	ModerateConfidence = 0.75
	LowConfidence      = 0.9
)

// SevereKeywords indicate explicit suicidal ideation or intent.
var SevereKeywords = []string{
	"suicide",
	"suicidal",
	"kill myself",
	"end my life",
	"take my own life",
	"want to die",
	"better off dead",
	"no reason to live",
	"don't want to live",
	"dont want to live",
	"end it all",
	"overdose",
}

// ModerateKeywords indicate heightened risk without explicit intent.
var ModerateKeywords = []string{
	"hopeless",
	"helpless",
	"worthless",
	"give up",
	"can't go on",
	"cant go on",
	"can't take it",
	"cant take it",
	"hurt myself",
	"harming myself",
	"self harm",
	"self-harm",
}

// Heuristic is the local keyword classifier. The zero value uses the
// canonical lists.
type Heuristic struct {
	Severe   []string
	Moderate []string
}

// Assess classifies message. It is total: any string, including the empty
// string, yields an assessment.
func (h Heuristic) Assess(message string) domain.RiskAssessment {
	severe, moderate := h.Severe, h.Moderate
	if severe == nil {
		severe = SevereKeywords
	}
	if moderate == nil {
		moderate = ModerateKeywords
	}

	lower := normalizeApostrophes(strings.ToLower(message))
	if containsAny(lower, severe) {
		return domain.RiskAssessment{Level: domain.RiskSevere, Confidence: SevereConfidence, ShouldEscalate: true, Source: "local"}
	}
	if containsAny(lower, moderate) {
		return domain.RiskAssessment{Level: domain.RiskModerate, Confidence: ModerateConfidence, ShouldEscalate: true, Source: "local"}
	}
	return domain.RiskAssessment{Level: domain.RiskLow, Confidence: LowConfidence, ShouldEscalate: false, Source: "local"}
}

// ContainsCrisisLanguage reports whether message hits any severe or moderate
// keyword.
func ContainsCrisisLanguage(message string) bool {
	return Heuristic{}.Assess(message).ShouldEscalate
}

// ContainsAny reports whether the lowercased message contains any phrase.
// Phrases are expected in lowercase.
func ContainsAny(message string, phrases []string) bool {
	return containsAny(normalizeApostrophes(strings.ToLower(message)), phrases)
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Mobile keyboards substitute typographic apostrophes.
var apostropheReplacer = strings.NewReplacer("’", "'", "‘", "'")

func normalizeApostrophes(s string) string {
	return apostropheReplacer.Replace(s)
}
