package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConflictErrorDetection(t *testing.T) {
	assert.False(t, IsSQLiteConflict(nil))
	assert.True(t, IsSQLiteConflict(errors.New("exec: SQLITE_BUSY (5)")))
	assert.True(t, IsSQLiteConflict(fmt.Errorf("append turn: %w", errors.New("database is locked"))))
	assert.False(t, IsSQLiteConflict(errors.New("no such table: turns")))
}

func TestRetryOnConflict(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("SQLITE_BUSY")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	permanent := errors.New("constraint failed")
	err = RetryOnConflict(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)

	calls = 0
	err = RetryOnConflict(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return errors.New("database is locked")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryOnConflictHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryOnConflict(ctx, 3, time.Hour, func() error { return errors.New("SQLITE_BUSY") })
	assert.ErrorIs(t, err, context.Canceled)
}
