package domain

import (
	"encoding/json"
	"strings"
)

// Occupation types understood by the prompt composer.
const (
	OccupationStudent = "student"
	OccupationWorking = "working"
)

// UserProfile holds the optional self-description a client may send with a
// chat request. Every field is optional; absent fields are omitted from the
// prompt entirely.
type UserProfile struct {
	Name               string     `json:"name,omitempty"`
	Age                FlexString `json:"age,omitempty"`
	Gender             string     `json:"gender,omitempty"`
	Pronouns           string     `json:"pronouns,omitempty"`
	OccupationType     string     `json:"occupationType,omitempty"`
	Course             string     `json:"course,omitempty"`
	Branch             string     `json:"branch,omitempty"`
	JobTitle           string     `json:"jobTitle,omitempty"`
	Organization       string     `json:"organization,omitempty"`
	CurrentMood        string     `json:"currentMood,omitempty"`
	Concerns           string     `json:"concerns,omitempty"`
	CommunicationStyle string     `json:"communicationStyle,omitempty"`
	PreviousTherapy    string     `json:"previousTherapy,omitempty"`
	PreferredRole      string     `json:"preferredRole,omitempty"`
	AboutMe            string     `json:"aboutMe,omitempty"`
}

// IsZero reports whether no field carries a value.
func (p *UserProfile) IsZero() bool {
	return p == nil || *p == UserProfile{}
}

// FlexString accepts either a JSON string or a JSON number. Browser clients
// send numeric form fields such as age in both shapes.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Anything else (null, objects) is treated as absent.
		*f = ""
		return nil
	}
	*f = FlexString(n.String())
	return nil
}
