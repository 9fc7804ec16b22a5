// Package agent defines the support personas and the per-session router that
// chooses between them.
package agent

import "fmt"

// Kind is the closed set of persona variants.
type Kind int

const (
	Crisis Kind = iota
	Technique
	Grounding
	General
	numKinds
)

// Kinds returns every kind in routing priority order.
func Kinds() []Kind {
	return []Kind{Crisis, Technique, Grounding, General}
}

// String returns the short key used in history records.
func (k Kind) String() string {
	switch k {
	case Crisis:
		return "crisis"
	case Technique:
		return "cbt"
	case Grounding:
		return "mindfulness"
	case General:
		return "companion"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a short key back to its Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// UnmarshalText lets personas.yaml name kinds by key.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, ok := ParseKind(string(b))
	if !ok {
		return fmt.Errorf("unknown persona kind %q", string(b))
	}
	*k = parsed
	return nil
}
