package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *MemoryStore {
	s := NewMemoryStore()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestMemoryStore_EnsureAndGet(t *testing.T) {
	t.Parallel()

	s := newTestStore()

	_, err := s.Get(t.Context(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	created, err := s.Ensure(t.Context(), "thread-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", created.UserID)

	again, err := s.Ensure(t.Context(), "thread-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAt, again.CreatedAt)

	_, err = s.Ensure(t.Context(), "thread-1", "bob")
	require.ErrorIs(t, err, ErrNotOwned)

	_, err = s.Ensure(t.Context(), "", "alice")
	require.Error(t, err)
}

func TestMemoryStore_AppendRun(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	_, err := s.Ensure(t.Context(), "thread-1", "")
	require.NoError(t, err)

	aspects := []string{"career_stats"}
	require.NoError(t, s.AppendRun(t.Context(), "thread-1", Run{Topic: "A vs B", Aspects: aspects, Outcome: "completed"}))
	require.NoError(t, s.AppendRun(t.Context(), "thread-1", Run{Topic: "A vs B", Aspects: aspects, Outcome: "cache_hit"}))
	aspects[0] = "mutated"

	sess, err := s.Get(t.Context(), "thread-1")
	require.NoError(t, err)
	require.Len(t, sess.Runs, 2)
	assert.Equal(t, "cache_hit", sess.Runs[1].Outcome)
	assert.Equal(t, []string{"career_stats"}, sess.Runs[0].Aspects)
	assert.True(t, sess.UpdatedAt.After(sess.CreatedAt))

	sess.Runs[0].Outcome = "tampered"
	fresh, err := s.Get(t.Context(), "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", fresh.Runs[0].Outcome)

	require.ErrorIs(t, s.AppendRun(t.Context(), "missing", Run{}), ErrNotFound)
}

func TestMemoryStore_List(t *testing.T) {
	t.Parallel()

	s := newTestStore()
	for _, id := range []string{"a", "b", "c"} {
		user := "alice"
		if id == "b" {
			user = "bob"
		}
		_, err := s.Ensure(t.Context(), id, user)
		require.NoError(t, err)
	}
	require.NoError(t, s.AppendRun(t.Context(), "a", Run{Topic: "x"}))

	all, err := s.List(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, ids(all))

	alice, err := s.List(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(alice))
}

func TestMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_, err := s.Ensure(t.Context(), "shared", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			assert.NoError(t, s.AppendRun(t.Context(), "shared", Run{Topic: "t"}))
			_, _ = s.Get(t.Context(), "shared")
		})
	}
	wg.Wait()

	sess, err := s.Get(t.Context(), "shared")
	require.NoError(t, err)
	assert.Len(t, sess.Runs, 50)
}

func ids(sessions []Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}
