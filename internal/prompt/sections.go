// Package prompt assembles the system prompt handed to the generation
// service.
package prompt

import (
	"strings"

	"github.com/ashureev/vish/internal/domain"
)

// Section headers.
const (
	headerUserContext = "=== USER CONTEXT ==="
	headerAgents      = "=== MULTI-AGENT SYSTEM CONTEXT ==="
	headerKnowledge   = "=== AVAILABLE KNOWLEDGE ==="
	headerDocuments   = "=== UPLOADED DOCUMENTS & MENTAL HEALTH RESOURCES ==="
	headerVoice       = "=== VOICE MODE ==="
)

// Sections holds the rendered body of each prompt section. Render emits them
// in field order and skips empty ones.
type Sections struct {
	Persona     string
	UserContext string
	Agents      string
	Knowledge   string
	Documents   string
	ModeCue     string
}

// Render joins the non-empty sections with blank lines. It is pure: equal
// inputs produce identical output.
func Render(s Sections) string {
	parts := []struct{ header, body string }{
		{"", s.Persona},
		{headerUserContext, s.UserContext},
		{headerAgents, s.Agents},
		{headerKnowledge, s.Knowledge},
		{headerDocuments, s.Documents},
		{headerVoice, s.ModeCue},
	}

	var b strings.Builder
	for _, p := range parts {
		body := strings.TrimSpace(p.body)
		if body == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if p.header != "" {
			b.WriteString(p.header)
			b.WriteByte('\n')
		}
		b.WriteString(body)
	}
	return b.String()
}

// UserContext renders the optional self-description in a fixed field order.
func UserContext(p *domain.UserProfile) string {
	if p.IsZero() {
		return ""
	}

	var b strings.Builder
	line := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			b.WriteString("- ")
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteByte('\n')
		}
	}

	line("Name", p.Name)
	line("Age", string(p.Age))
	line("Gender", p.Gender)
	line("Preferred Pronouns", p.Pronouns)
	switch strings.ToLower(strings.TrimSpace(p.OccupationType)) {
	case domain.OccupationStudent:
		line("Occupation", "Student")
		line("Course", p.Course)
		line("Branch/Specialization", p.Branch)
	case domain.OccupationWorking:
		line("Occupation", "Working Professional")
		line("Job Title", p.JobTitle)
		line("Organization", p.Organization)
	}
	line("Current Emotional State", p.CurrentMood)
	line("Primary Concerns/Goals", p.Concerns)
	line("Preferred Communication Style", p.CommunicationStyle)
	line("Therapy Experience", p.PreviousTherapy)
	line("Preferred Interaction Style", p.PreferredRole)
	line("About", p.AboutMe)

	if b.Len() == 0 {
		return ""
	}
	b.WriteString("\nUse this information naturally and adapt your responses to their preferences. ")
	b.WriteString("Be especially mindful of their emotional state and communication style. ")
	b.WriteString("Interact with the user in the manner they prefer. Use their preferred pronouns consistently.")
	return b.String()
}
