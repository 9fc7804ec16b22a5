package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/vish/internal/domain"
)

var _ Repository = (*SQLiteStore)(nil)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "vish.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTurnsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendTurn(ctx, "s1", domain.Turn{Role: domain.RoleUser, Text: "hello", Timestamp: at}))
	require.NoError(t, s.AppendTurn(ctx, "s1", domain.Turn{Role: domain.RoleAssistant, Text: "hi, how are you?", Timestamp: at}))
	require.NoError(t, s.AppendTurn(ctx, "s2", domain.Turn{Role: domain.RoleUser, Text: "other", Timestamp: at}))

	turns, err := s.ListTurns(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, domain.Turn{Role: domain.RoleUser, Text: "hello", Timestamp: at}, turns[0])
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)

	last, err := s.ListTurns(ctx, "s1", 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "hi, how are you?", last[0].Text)

	none, err := s.ListTurns(ctx, "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHandoffsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	h := domain.HandoffRecord{FromRole: "companion", ToRole: "crisis-counselor", Reason: "crisis-detected", Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}

	require.NoError(t, s.RecordHandoff(ctx, "s1", h))
	got, err := s.ListHandoffs(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []domain.HandoffRecord{h}, got)
}

func TestDeleteOlderThan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.AppendTurn(ctx, "s", domain.Turn{Role: domain.RoleUser, Text: "old", Timestamp: now.Add(-40 * 24 * time.Hour)}))
	require.NoError(t, s.AppendTurn(ctx, "s", domain.Turn{Role: domain.RoleUser, Text: "new", Timestamp: now}))
	require.NoError(t, s.RecordHandoff(ctx, "s", domain.HandoffRecord{FromRole: "a", ToRole: "b", Reason: "r", Timestamp: now.Add(-40 * 24 * time.Hour)}))

	removed, err := s.DeleteOlderThan(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	turns, err := s.ListTurns(ctx, "s", 0)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "new", turns[0].Text)

	handoffs, err := s.ListHandoffs(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, handoffs)
}

func TestConcurrentAppends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AppendTurn(ctx, "busy", domain.Turn{Role: domain.RoleUser, Text: "x", Timestamp: time.Now()}))
		}()
	}
	wg.Wait()

	turns, err := s.ListTurns(ctx, "busy", 0)
	require.NoError(t, err)
	assert.Len(t, turns, 20)
	assert.NoError(t, s.Ping(ctx))
}
