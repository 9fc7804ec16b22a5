package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/vish/internal/agent"
	"github.com/ashureev/vish/internal/domain"
	"github.com/ashureev/vish/internal/knowledge"
)

// Mode is the conversational channel of a request.
type Mode string

const (
	ModeChat  Mode = "chat"
	ModeTalk  Mode = "talk"
	ModeAudio Mode = "audio"
)

// ParseMode maps a client mode string to a Mode. Unknown values are chat.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "talk", "voice":
		return ModeTalk
	case "audio":
		return ModeAudio
	default:
		return ModeChat
	}
}

// Spoken reports whether the reply will be read aloud.
func (m Mode) Spoken() bool { return m == ModeTalk || m == ModeAudio }

const (
	talkCue  = "You are currently in VOICE mode. Respond as if speaking aloud. Keep replies warm, conversational, and concise (no more than three short sentences). Invite the person to continue sharing rather than delivering long monologues."
	audioCue = "You are speaking aloud in a warm, empathetic, and conversational tone. Keep responses natural and emotionally supportive, as if you're a caring friend having a voice conversation. Responses should be concise (2-4 short sentences) and conversational. Use a calm, wise and reassuring voice."
)

// Retriever ranks reference material for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, includeUserDocs bool) []knowledge.Result
}

// Input is everything the composer needs for one message.
type Input struct {
	Agent   agent.Profile
	Others  []agent.Profile
	Profile *domain.UserProfile
	Message string
	Mode    Mode
	// HandoffNote is set when the previous persona differs from Agent.
	HandoffNote string
	// RemoteKnowledge is pre-fetched context from the knowledge service.
	RemoteKnowledge string
	// UseRetrieval enables local corpus and user document retrieval.
	UseRetrieval bool
}

// Prompt is a composed system prompt and the local results it cites.
type Prompt struct {
	System  string
	Sources []knowledge.Result
}

// Composer builds system prompts.
type Composer struct {
	retriever Retriever
	topK      int
}

// NewComposer creates a Composer. A nil retriever disables local retrieval.
func NewComposer(r Retriever, topK int) *Composer {
	if topK <= 0 {
		topK = knowledge.DefaultTopK
	}
	return &Composer{retriever: r, topK: topK}
}

// BuildPrompt queries the knowledge store and merges every context source.
func (c *Composer) BuildPrompt(ctx context.Context, in Input) Prompt {
	var sources []knowledge.Result
	if in.UseRetrieval && c.retriever != nil {
		sources = c.retriever.Retrieve(ctx, in.Message, c.topK, true)
	}

	return Prompt{
		System: Render(Sections{
			Persona:     in.Agent.Instructions,
			UserContext: UserContext(in.Profile),
			Agents:      AgentContext(in.Agent, in.Others, in.HandoffNote),
			Knowledge:   in.RemoteKnowledge,
			Documents:   Documents(sources),
			ModeCue:     ModeCue(in.Mode),
		}),
		Sources: sources,
	}
}

// AgentContext tells the active persona about the others.
func AgentContext(active agent.Profile, others []agent.Profile, handoffNote string) string {
	if active.Role == "" {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are part of a multi-agent system. You are: %s (%s)\n", active.Name, active.Role)
	if len(others) > 0 {
		b.WriteString("Other available agents:\n")
		for _, o := range others {
			fmt.Fprintf(&b, "- %s: %s\n", o.Name, strings.Join(o.Expertise, ", "))
		}
	}
	b.WriteString("\nIf the user's needs shift to another agent's expertise, acknowledge this naturally in your response. The system will route appropriately.")
	if handoffNote != "" {
		b.WriteString("\n\n")
		b.WriteString(handoffNote)
	}
	return b.String()
}

// Documents renders local retrieval results in rank order.
func Documents(results []knowledge.Result) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, "\n\n")
}

// ModeCue returns the speaking-style instruction for spoken modes.
func ModeCue(m Mode) string {
	switch m {
	case ModeTalk:
		return talkCue
	case ModeAudio:
		return audioCue
	default:
		return ""
	}
}
