package session

import (
	"sync"
	"time"

	"github.com/ashureev/vish/internal/domain"
)

// Memory is a session's ordered conversation log.
type Memory struct {
	mu    sync.Mutex
	turns []domain.Turn
}

// Append records one exchange. Turns are never edited after this point.
func (m *Memory) Append(userText, assistantText string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns,
		domain.Turn{Role: domain.RoleUser, Text: userText, Timestamp: at},
		domain.Turn{Role: domain.RoleAssistant, Text: assistantText, Timestamp: at},
	)
}

// Turns returns a copy of the log in insertion order.
func (m *Memory) Turns() []domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Len returns the number of stored turns.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}
