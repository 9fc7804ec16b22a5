package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/vish/internal/agent"
	"github.com/ashureev/vish/internal/risk"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	catalog, err := agent.DefaultCatalog()
	require.NoError(t, err)
	assessor := risk.NewAssessor()
	return NewRegistry(func(id string) *agent.Router {
		return agent.NewRouter(catalog, assessor, agent.WithSessionID(id))
	}, nil)
}

func TestGetOrCreateReturnsSameSession(t *testing.T) {
	reg := newTestRegistry(t)

	a := reg.GetOrCreate("s1")
	b := reg.GetOrCreate("s1")
	c := reg.GetOrCreate("s2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, reg.Len())
}

func TestGetOrCreateConcurrent(t *testing.T) {
	reg := newTestRegistry(t)

	const n = 50
	got := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = reg.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, reg.Len())
}

func TestClearIsIdempotent(t *testing.T) {
	reg := newTestRegistry(t)

	assert.False(t, reg.Clear("never-created"))

	s := reg.GetOrCreate("s1")
	s.Router.SelectAgent(context.Background(), "I want to end my life")
	s.Memory.Append("hello", "hi", time.Now())

	assert.True(t, reg.Clear("s1"))
	assert.False(t, reg.Clear("s1"))
	assert.Equal(t, 0, reg.Len())

	fresh := reg.GetOrCreate("s1")
	assert.NotSame(t, s, fresh)
	assert.Equal(t, 0, fresh.Memory.Len())
	_, active := fresh.Router.Active()
	assert.False(t, active)
}

func TestMemoryOrder(t *testing.T) {
	var m Memory
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.Append("first", "reply one", at)
	m.Append("second", "reply two", at.Add(time.Minute))

	turns := m.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, "first", turns[0].Text)
	assert.Equal(t, "reply one", turns[1].Text)
	assert.Equal(t, "second", turns[2].Text)
	assert.Equal(t, "reply two", turns[3].Text)

	turns[0].Text = "mutated"
	assert.Equal(t, "first", m.Turns()[0].Text)
}
