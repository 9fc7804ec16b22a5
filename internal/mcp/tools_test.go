package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultKB(t *testing.T) *KnowledgeBase {
	t.Helper()
	kb, err := DefaultKnowledgeBase()
	require.NoError(t, err)
	return kb
}

func TestDefaultKnowledgeBaseParses(t *testing.T) {
	kb := defaultKB(t)
	assert.Len(t, kb.Topics, 4)
	assert.Equal(t, []string{"thought-challenging", "behavioral-activation", "problem-solving", "exposure-therapy"}, kb.TechniqueIDs())
	assert.Equal(t, "988", kb.CrisisResources["US"]["suicide"].Number)
	assert.Len(t, kb.CopingStrategies["immediate"], 3)
}

func TestParseKnowledgeBaseRequiresUS(t *testing.T) {
	_, err := ParseKnowledgeBase([]byte("crisisResources:\n  UK: {}\n"))
	assert.Error(t, err)
}

func TestSearchTopics(t *testing.T) {
	kb := defaultKB(t)

	got := kb.SearchTopics("I keep having panic attacks", 2)
	require.NotEmpty(t, got.Results)
	assert.Equal(t, "panic", got.Results[0].Topic)
	assert.Equal(t, len(got.Results), got.ResultsCount)

	got = kb.SearchTopics("fatigue", 5)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "depression", got.Results[0].Topic)
	assert.Equal(t, 3, got.Results[0].RelevanceScore)

	assert.Zero(t, kb.SearchTopics("gardening tips", 5).ResultsCount)
}

func TestCrisisResourcesFor(t *testing.T) {
	kb := defaultKB(t)

	all := kb.CrisisResourcesFor("", "")
	assert.Equal(t, "US", all.Country)
	assert.Equal(t, "all", all.CrisisType)
	assert.Contains(t, all.Resources, "lgbtq")

	veterans := kb.CrisisResourcesFor("us", "veterans")
	assert.Len(t, veterans.Resources, 2)
	assert.Contains(t, veterans.Resources, "emergency")

	fallback := kb.CrisisResourcesFor("ZZ", "")
	assert.Equal(t, kb.CrisisResources["US"], fallback.Resources)

	uk := kb.CrisisResourcesFor("UK", "")
	assert.Equal(t, "Samaritans", uk.Resources["suicide"].Name)
}

func TestRecommendCoping(t *testing.T) {
	kb := defaultKB(t)

	got := kb.RecommendCoping("anxiety", "immediate", 3)
	assert.Equal(t, 3, got.StrategiesCount)

	got = kb.RecommendCoping("insomnia", "bogus", 3)
	assert.Equal(t, "short-term", got.Urgency)
	require.Len(t, got.Strategies, 1)
	assert.Equal(t, "Progressive Muscle Relaxation", got.Strategies[0].Name)

	got = kb.RecommendCoping("anxiety", "long-term", 1)
	assert.Len(t, got.Strategies, 1)
}

func TestCallDispatch(t *testing.T) {
	kb := defaultKB(t)

	_, err := kb.Call(ToolSearchTopics, map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = kb.Call(ToolCBTTechnique, map[string]any{"technique": "hypnosis"})
	assert.ErrorIs(t, err, ErrTechniqueNotFound)

	_, err = kb.Call("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)

	res, err := kb.Call(ToolAssessCrisis, map[string]any{"message": "hi there"})
	require.NoError(t, err)
	a := res.(CrisisAssessment)
	assert.Equal(t, "low", a.CrisisLevel)
	assert.False(t, a.ShouldEscalateToCrisisAgent)

	res, err = kb.Call(ToolSearchTopics, map[string]any{"query": "stress", "limit": float64(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.(TopicSearch).ResultsCount)
}
