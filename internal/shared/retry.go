package shared

import (
	"context"
	"log/slog"
	"time"
)

// RetryOnConflict runs fn up to attempts times, backing off exponentially
// from baseDelay while fn keeps failing with a SQLite concurrency error.
// Any other error is returned immediately.
func RetryOnConflict(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsSQLiteConflict(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
		slog.Debug("sqlite write conflict, retrying", "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
