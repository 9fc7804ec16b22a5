// Package generation wraps the chat completion service that produces persona
// replies.
package generation

import (
	"context"
	"errors"
)

var (
	// ErrContentFiltered is returned when the service refuses the request on
	// content-safety grounds.
	ErrContentFiltered = errors.New("content filtered")
	// ErrEmptyReply is returned when the service answers without text.
	ErrEmptyReply = errors.New("empty reply")
	// ErrNotConfigured is returned by Unconfigured.
	ErrNotConfigured = errors.New("generation service not configured")
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a completion request.
type Message struct {
	Role    Role
	Content string
}

// Request asks for one reply.
type Request struct {
	Messages []Message
	// Audio requests a spoken reply alongside the text.
	Audio bool
}

// Reply is the service's answer.
type Reply struct {
	Text string
	// AudioData is base64 mp3 when audio was requested and returned.
	AudioData string
}

// Generator produces a reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}

// Unconfigured is used when no credentials are present. Every call fails.
type Unconfigured struct{}

// Generate implements Generator.
func (Unconfigured) Generate(context.Context, Request) (Reply, error) {
	return Reply{}, ErrNotConfigured
}
