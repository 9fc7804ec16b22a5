package chat

// CrisisResource is a crisis line surfaced alongside a reply.
type CrisisResource struct {
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
	URL     string `json:"url,omitempty"`
}

// CrisisResources returns the lines shown with every crisis reply.
func CrisisResources() []CrisisResource {
	return []CrisisResource{
		{Name: "National Suicide Prevention Lifeline", Contact: "988"},
		{Name: "Crisis Text Line", Contact: "Text HOME to 741741"},
		{Name: "International Association for Suicide Prevention", URL: "https://www.iasp.info/resources/Crisis_Centres/"},
	}
}

// Content-filter fallbacks. The persona reported with them is fixed.
const (
	filteredAgentName = "Crisis Counselor"
	filteredAgentRole = "crisis-counselor"
	filteredEmotion   = "concern"
)

const crisisFilteredReply = "**[Auto-Generated Safety Response]**\n\n" +
	"I can hear that you're going through a really difficult time right now. Due to content safety filters, I'm currently unable to respond directly to your message, but your safety is what matters most.\n\n" +
	"**Please reach out to a crisis counselor immediately:**\n" +
	"• Call or text **988** (US Suicide & Crisis Lifeline)\n" +
	"• Text HOME to **741741** (Crisis Text Line)\n" +
	"• Call **911** if you're in immediate danger\n\n" +
	"These services have trained professionals available 24/7 who can provide the immediate support you need. You don't have to face this alone.\n\n" +
	"*Note: This is an automated safety message because my AI capabilities are currently limited in responding to crisis situations. Please seek human support right away.*"

const filteredReply = "**[Auto-Generated Response]**\n\n" +
	"I apologize, but I'm unable to respond to your message directly due to content safety filters. This is an automated message to let you know that my AI capabilities have limitations in certain situations.\n\n" +
	"If you're experiencing a mental health crisis or having thoughts of self-harm, please contact:\n" +
	"• **988** (US Suicide & Crisis Lifeline)\n" +
	"• Text HOME to **741741** (Crisis Text Line)\n\n" +
	"For general support, you might try rephrasing your message, or reach out to a mental health professional who can provide the help you need.\n\n" +
	"*This is an automated safety response - I'm currently not able to assist with this particular request.*"

// SystemErrorReply is returned with any generation failure other than a
// content-filter refusal.
const SystemErrorReply = "**[System Error]**\n\n" +
	"I'm sorry, I encountered a technical problem and cannot respond right now. This is an automated error message.\n\n" +
	"If you're in crisis, please call **988** (US) or your local emergency number immediately for professional help.\n\n" +
	"*This is an automated response due to a system error.*"
