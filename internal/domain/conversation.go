// Package domain contains core domain types shared across the Vish service.
package domain

import (
	"time"
)

// Role identifies the speaker of a conversation turn.
type Role string

const (
	// RoleUser is a message written by the person seeking support.
	RoleUser Role = "user"
	// RoleAssistant is a reply produced by the active persona.
	RoleAssistant Role = "assistant"
)

// Turn is one immutable entry in a session's conversation memory.
// Ordering is insertion order; Timestamp is informational only.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SelectionRecord is one entry of a session's agent-history log.
type SelectionRecord struct {
	Agent     string    `json:"agent"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// HandoffRecord is appended whenever the active persona of a session changes.
type HandoffRecord struct {
	FromRole  string    `json:"fromRole"`
	ToRole    string    `json:"toRole"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}
