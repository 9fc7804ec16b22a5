package agent

// Handoff is advice to move the conversation to another persona.
type Handoff struct {
	ShouldHandoff bool   `json:"shouldHandoff"`
	TargetRole    string `json:"targetAgent,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Message       string `json:"handoffMessage,omitempty"`
}

// Hand-off reasons.
const (
	HandoffCrisis      = "crisis-detected"
	HandoffMindfulness = "mindfulness-requested"
	HandoffCBT         = "cbt-requested"
)

var (
	groundingPhrases = []string{"breathing", "calm down", "grounding"}
	techniquePhrases = []string{"negative thoughts", "cognitive", "thinking patterns"}
)

const genericHandoffMessage = "I'm connecting you with a specialist who can help better with your specific needs."

var handoffMessages = map[[2]Kind]string{
	{General, Crisis}:      "I'm connecting you with our crisis counselor right now. They're specially trained for these situations and are here to help.",
	{General, Technique}:   "Let me introduce you to our CBT therapist who can help you work through these thought patterns.",
	{General, Grounding}:   "Our mindfulness coach can guide you through some calming techniques. They're excellent at this.",
	{Technique, Crisis}:    "I'm noticing this might need immediate crisis support. Let me connect you with our crisis counselor right away.",
	{Technique, Grounding}: "For immediate relief, our mindfulness coach can guide you through grounding exercises.",
	{Grounding, Crisis}:    "I'm connecting you with our crisis counselor who can provide the urgent support you need.",
	{Grounding, Technique}: "For deeper work on those thought patterns, our CBT therapist would be perfect.",
}

// HandoffMessage returns the transition message for a persona change.
func HandoffMessage(from, to Kind) string {
	if msg, ok := handoffMessages[[2]Kind{from, to}]; ok {
		return msg
	}
	return genericHandoffMessage
}

// ShouldHandoff advises whether a conversation held by currentRole should
// move elsewhere. A crisis conversation is never advised to move.
func (r *Router) ShouldHandoff(message, currentRole string) Handoff {
	current, err := r.catalog.ByRole(currentRole)
	known := err == nil
	if known && current.Kind == Crisis {
		return Handoff{}
	}

	advise := func(to Kind, reason string) Handoff {
		msg := genericHandoffMessage
		if known {
			msg = HandoffMessage(current.Kind, to)
		}
		return Handoff{
			ShouldHandoff: true,
			TargetRole:    r.catalog.Profile(to).Role,
			Reason:        reason,
			Message:       msg,
		}
	}
	holds := func(k Kind) bool { return known && current.Kind == k }

	lower := normalize(message)
	if matchesAny(lower, r.catalog.Profile(Crisis).Triggers) {
		return advise(Crisis, HandoffCrisis)
	}
	if matchesAny(lower, groundingPhrases) && !holds(Grounding) {
		return advise(Grounding, HandoffMindfulness)
	}
	if matchesAny(lower, techniquePhrases) && !holds(Technique) {
		return advise(Technique, HandoffCBT)
	}
	return Handoff{}
}
