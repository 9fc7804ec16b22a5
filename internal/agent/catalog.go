package agent

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownAgent is returned for role names that match no persona.
var ErrUnknownAgent = errors.New("unknown agent")

//go:embed personas.yaml
var defaultPersonas []byte

// Profile is a statically defined persona.
type Profile struct {
	Kind         Kind     `yaml:"kind" json:"-"`
	Name         string   `yaml:"name" json:"name"`
	Role         string   `yaml:"role" json:"role"`
	Emotion      string   `yaml:"emotion" json:"emotion"`
	Expertise    []string `yaml:"expertise" json:"expertise"`
	Tools        []string `yaml:"tools" json:"tools"`
	Triggers     []string `yaml:"triggers" json:"triggers"`
	Instructions string   `yaml:"instructions" json:"-"`
}

// Key returns the short history key, e.g. "cbt".
func (p Profile) Key() string { return p.Kind.String() }

// Catalog holds exactly one Profile per Kind.
type Catalog struct {
	profiles [numKinds]Profile
}

// DefaultCatalog loads the embedded personas.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultPersonas)
}

// ParseCatalog decodes and validates a personas document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Personas []Profile `yaml:"personas"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse personas: %w", err)
	}

	var (
		c     Catalog
		seen  [numKinds]bool
		roles = make(map[string]bool)
	)
	for _, p := range doc.Personas {
		if seen[p.Kind] {
			return nil, fmt.Errorf("parse personas: duplicate %s persona", p.Kind)
		}
		if p.Role == "" || p.Name == "" {
			return nil, fmt.Errorf("parse personas: %s persona needs a name and role", p.Kind)
		}
		if roles[p.Role] {
			return nil, fmt.Errorf("parse personas: duplicate role %q", p.Role)
		}
		if p.Kind == General && len(p.Triggers) > 0 {
			return nil, errors.New("parse personas: general persona must not have triggers")
		}
		for i, t := range p.Triggers {
			p.Triggers[i] = strings.ToLower(strings.TrimSpace(t))
		}
		seen[p.Kind] = true
		roles[p.Role] = true
		c.profiles[p.Kind] = p
	}
	for _, k := range Kinds() {
		if !seen[k] {
			return nil, fmt.Errorf("parse personas: missing %s persona", k)
		}
	}
	return &c, nil
}

// Profile returns the persona of kind k.
func (c *Catalog) Profile(k Kind) Profile {
	return c.profiles[k]
}

// ByRole looks a persona up by role ("cbt-therapist") or key ("cbt").
func (c *Catalog) ByRole(role string) (Profile, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, p := range c.profiles {
		if p.Role == role || p.Key() == role {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownAgent, role)
}

// All returns every persona in routing priority order.
func (c *Catalog) All() []Profile {
	out := make([]Profile, 0, numKinds)
	for _, k := range Kinds() {
		out = append(out, c.profiles[k])
	}
	return out
}

// Others returns every persona except k, in routing priority order.
func (c *Catalog) Others(k Kind) []Profile {
	out := make([]Profile, 0, numKinds-1)
	for _, p := range c.All() {
		if p.Kind != k {
			out = append(out, p)
		}
	}
	return out
}
