package domain

// RiskLevel is the crisis-severity tier of a single message.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskSevere   RiskLevel = "severe"
)

// Rank orders levels so that severe > moderate > low.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskSevere:
		return 2
	case RiskModerate:
		return 1
	default:
		return 0
	}
}

// Valid reports whether l is one of the known levels.
func (l RiskLevel) Valid() bool {
	return l == RiskLow || l == RiskModerate || l == RiskSevere
}

// RiskAssessment is produced fresh for every message.
type RiskAssessment struct {
	Level          RiskLevel `json:"level"`
	Confidence     float64   `json:"confidence"`
	ShouldEscalate bool      `json:"shouldEscalate"`
	// Source is "local" or "remote" and only used for logging.
	Source string `json:"source,omitempty"`
}
