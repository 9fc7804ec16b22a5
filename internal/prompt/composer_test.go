package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/vish/internal/agent"
	"github.com/ashureev/vish/internal/domain"
	"github.com/ashureev/vish/internal/knowledge"
)

type fakeRetriever struct {
	results []knowledge.Result
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, topK int, _ bool) []knowledge.Result {
	f.queries = append(f.queries, query)
	if len(f.results) > topK {
		return f.results[:topK]
	}
	return f.results
}

func testCatalog(t *testing.T) *agent.Catalog {
	t.Helper()
	c, err := agent.DefaultCatalog()
	require.NoError(t, err)
	return c
}

func TestRenderOmitsEmptySections(t *testing.T) {
	got := Render(Sections{Persona: "persona", Documents: "doc one", ModeCue: "  "})
	want := "persona\n\n=== UPLOADED DOCUMENTS & MENTAL HEALTH RESOURCES ===\ndoc one"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "", Render(Sections{}))
}

func TestUserContextFieldOrder(t *testing.T) {
	p := &domain.UserProfile{
		AboutMe:        "likes hiking",
		Name:           "Asha",
		Age:            "21",
		OccupationType: "student",
		Course:         "B.Tech",
		Branch:         "CSE",
		JobTitle:       "ignored for students",
		CurrentMood:    "anxious",
		Pronouns:       "she/her",
	}
	got := UserContext(p)
	lines := strings.Split(got, "\n")
	want := []string{
		"- Name: Asha",
		"- Age: 21",
		"- Preferred Pronouns: she/her",
		"- Occupation: Student",
		"- Course: B.Tech",
		"- Branch/Specialization: CSE",
		"- Current Emotional State: anxious",
		"- About: likes hiking",
	}
	if diff := cmp.Diff(want, lines[:len(want)]); diff != "" {
		t.Errorf("field order mismatch (-want +got):\n%s", diff)
	}
	assert.NotContains(t, got, "Job Title")

	assert.Equal(t, "", UserContext(nil))
	assert.Equal(t, "", UserContext(&domain.UserProfile{}))
}

func TestUserContextWorking(t *testing.T) {
	got := UserContext(&domain.UserProfile{OccupationType: "Working", JobTitle: "Nurse", Organization: "City Hospital"})
	assert.Contains(t, got, "- Occupation: Working Professional\n- Job Title: Nurse\n- Organization: City Hospital\n")
}

func TestBuildPromptOrderAndSources(t *testing.T) {
	catalog := testCatalog(t)
	cbt := catalog.Profile(agent.Technique)
	r := &fakeRetriever{results: []knowledge.Result{
		{Content: "breathing helps anxiety", Source: "[Resource] a.txt", Score: 3},
		{Content: "notes on anxiety", Source: "[Your Document] n.md", Score: 1},
	}}
	c := NewComposer(r, 3)

	p := c.BuildPrompt(context.Background(), Input{
		Agent:           cbt,
		Others:          catalog.Others(agent.Technique),
		Profile:         &domain.UserProfile{Name: "Sam"},
		Message:         "my anxiety keeps spiralling",
		Mode:            ModeTalk,
		HandoffNote:     "User was previously speaking with the Conversational Companion Agent.",
		RemoteKnowledge: "CBT TECHNIQUE - thought-challenging",
		UseRetrieval:    true,
	})

	require.Len(t, p.Sources, 2)
	idx := func(s string) int {
		i := strings.Index(p.System, s)
		require.GreaterOrEqual(t, i, 0, "missing %q", s)
		return i
	}
	order := []int{
		idx(cbt.Instructions[:20]),
		idx(headerUserContext),
		idx(headerAgents),
		idx("previously speaking with"),
		idx(headerKnowledge),
		idx(headerDocuments),
		idx("breathing helps anxiety"),
		idx("notes on anxiety"),
		idx(headerVoice),
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i], "section %d out of order", i)
	}

	for _, o := range catalog.Others(agent.Technique) {
		assert.Contains(t, p.System, "- "+o.Name+": ")
	}
	assert.NotContains(t, p.System, "- "+cbt.Name+": ")
}

func TestBuildPromptDeterministic(t *testing.T) {
	catalog := testCatalog(t)
	c := NewComposer(&fakeRetriever{results: []knowledge.Result{{Content: "x", Score: 1}}}, 3)
	in := Input{
		Agent:        catalog.Profile(agent.General),
		Others:       catalog.Others(agent.General),
		Profile:      &domain.UserProfile{Name: "Kai", Concerns: "sleep"},
		Message:      "trouble sleeping lately",
		UseRetrieval: true,
	}
	a := c.BuildPrompt(context.Background(), in)
	b := c.BuildPrompt(context.Background(), in)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("non-deterministic prompt (-a +b):\n%s", diff)
	}
}

func TestBuildPromptRetrievalDisabled(t *testing.T) {
	catalog := testCatalog(t)
	r := &fakeRetriever{results: []knowledge.Result{{Content: "x", Score: 1}}}
	p := NewComposer(r, 3).BuildPrompt(context.Background(), Input{
		Agent:   catalog.Profile(agent.General),
		Message: "anything at all",
	})
	assert.Empty(t, p.Sources)
	assert.Empty(t, r.queries)
	assert.NotContains(t, p.System, headerDocuments)
	assert.NotContains(t, p.System, headerVoice)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeTalk, ParseMode("TALK"))
	assert.Equal(t, ModeTalk, ParseMode("voice"))
	assert.Equal(t, ModeAudio, ParseMode("audio"))
	assert.Equal(t, ModeChat, ParseMode(""))
	assert.Equal(t, ModeChat, ParseMode("banana"))
	assert.True(t, ModeAudio.Spoken())
	assert.False(t, ModeChat.Spoken())
}
