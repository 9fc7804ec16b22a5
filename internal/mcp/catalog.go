package mcp

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed knowledge.yaml
var defaultKnowledge []byte

// Topic is an entry of the mental health education collection.
type Topic struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Symptoms    []string `yaml:"symptoms" json:"symptoms,omitempty"`
	Types       []string `yaml:"types" json:"types,omitempty"`
	Treatments  []string `yaml:"treatments" json:"treatments,omitempty"`
	SelfHelp    []string `yaml:"selfHelp" json:"selfHelp,omitempty"`
}

// TopicResult is a scored Topic.
type TopicResult struct {
	Topic          string   `json:"topic"`
	Description    string   `json:"description"`
	Symptoms       []string `json:"symptoms,omitempty"`
	Types          []string `json:"types,omitempty"`
	Treatments     []string `json:"treatments,omitempty"`
	SelfHelp       []string `json:"selfHelp,omitempty"`
	RelevanceScore int      `json:"relevanceScore"`
}

// CrisisLine is one hotline entry.
type CrisisLine struct {
	Name              string   `yaml:"name" json:"name,omitempty"`
	Number            string   `yaml:"number" json:"number,omitempty"`
	AlternativeNumber string   `yaml:"alternativeNumber" json:"alternativeNumber,omitempty"`
	TextLine          string   `yaml:"textLine" json:"textLine,omitempty"`
	Website           string   `yaml:"website" json:"website,omitempty"`
	Email             string   `yaml:"email" json:"email,omitempty"`
	Description       string   `yaml:"description" json:"description,omitempty"`
	Note              string   `yaml:"note" json:"note,omitempty"`
	Languages         []string `yaml:"languages" json:"languages,omitempty"`
}

// Protocol is the recommended response for a risk tier.
type Protocol struct {
	Level      string   `yaml:"level" json:"level"`
	Indicators []string `yaml:"indicators" json:"indicators"`
	Actions    []string `yaml:"actions" json:"actions"`
}

// CopingStrategy is a self-help exercise.
type CopingStrategy struct {
	Name          string   `yaml:"name" json:"name"`
	Duration      string   `yaml:"duration" json:"duration"`
	Steps         []string `yaml:"steps" json:"steps"`
	ApplicableTo  []string `yaml:"applicableTo" json:"applicableTo"`
	Effectiveness string   `yaml:"effectiveness" json:"effectiveness"`
}

// TechniqueStep is one step of a CBT technique.
type TechniqueStep struct {
	Step        int    `yaml:"step" json:"step"`
	Title       string `yaml:"title" json:"title"`
	Instruction string `yaml:"instruction" json:"instruction"`
	Example     string `yaml:"example" json:"example"`
}

// CBTTechnique is a structured cognitive behavioral exercise.
type CBTTechnique struct {
	ID          string          `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	Steps       []TechniqueStep `yaml:"steps" json:"steps"`
	BestFor     []string        `yaml:"bestFor" json:"bestFor"`
	Difficulty  string          `yaml:"difficulty" json:"difficulty"`
	Warning     string          `yaml:"warning" json:"warning,omitempty"`
}

// KnowledgeBase is the content served by the knowledge service.
type KnowledgeBase struct {
	Topics           []Topic                          `yaml:"topics"`
	CrisisResources  map[string]map[string]CrisisLine `yaml:"crisisResources"`
	CrisisProtocol   map[string]Protocol              `yaml:"crisisProtocol"`
	CopingStrategies map[string][]CopingStrategy      `yaml:"copingStrategies"`
	CBTTechniques    []CBTTechnique                   `yaml:"cbtTechniques"`
}

// DefaultKnowledgeBase parses the embedded knowledge base.
func DefaultKnowledgeBase() (*KnowledgeBase, error) {
	return ParseKnowledgeBase(defaultKnowledge)
}

// ParseKnowledgeBase decodes and validates a YAML knowledge base.
func ParseKnowledgeBase(data []byte) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	if err := yaml.Unmarshal(data, &kb); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	if _, ok := kb.CrisisResources[defaultCountry]; !ok {
		return nil, fmt.Errorf("parse knowledge base: missing %s crisis resources", defaultCountry)
	}
	for _, level := range []string{"severe", "moderate", "low"} {
		if _, ok := kb.CrisisProtocol[level]; !ok {
			return nil, fmt.Errorf("parse knowledge base: missing %s protocol", level)
		}
	}
	if _, ok := kb.CopingStrategies[defaultUrgency]; !ok {
		return nil, fmt.Errorf("parse knowledge base: missing %s coping strategies", defaultUrgency)
	}
	return &kb, nil
}

// Technique returns the CBT technique with the given id.
func (kb *KnowledgeBase) Technique(id string) (CBTTechnique, bool) {
	for _, t := range kb.CBTTechniques {
		if t.ID == id {
			return t, true
		}
	}
	return CBTTechnique{}, false
}

// TechniqueIDs returns technique ids in declaration order.
func (kb *KnowledgeBase) TechniqueIDs() []string {
	ids := make([]string, 0, len(kb.CBTTechniques))
	for _, t := range kb.CBTTechniques {
		ids = append(ids, t.ID)
	}
	return ids
}
