// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/vish/internal/domain"
)

// Repository archives conversation turns and persona changes beyond the
// lifetime of an in-memory session.
type Repository interface {
	// AppendTurn stores one turn for a session.
	AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) error

	// ListTurns returns a session's archived turns, oldest first. A limit of
	// zero or less returns all of them.
	ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)

	// RecordHandoff stores a persona change.
	RecordHandoff(ctx context.Context, sessionID string, h domain.HandoffRecord) error

	// ListHandoffs returns a session's persona changes, oldest first.
	ListHandoffs(ctx context.Context, sessionID string) ([]domain.HandoffRecord, error)

	// DeleteOlderThan removes turns and hand-offs created before cutoff and
	// returns the number of turns removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
