// Package cachetest checks that a cache.Store honors the store contract.
package cachetest

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/briefing/pkg/cache"
)

// Run exercises the store returned by newStore. Each subtest gets a fresh
// store.
func Run(t *testing.T, newStore func(t *testing.T) cache.Store) {
	t.Helper()

	t.Run("miss", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)

		_, ok, err := s.Get(t.Context(), "gathered:absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put then get", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)

		require.NoError(t, s.Put(t.Context(), "report:abc", "# Report\n\nbody"))

		got, ok, err := s.Get(t.Context(), "report:abc")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "# Report\n\nbody", got)
	})

	t.Run("last write wins", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)

		require.NoError(t, s.Put(t.Context(), "k", "first"))
		require.NoError(t, s.Put(t.Context(), "k", "second"))

		got, ok, err := s.Get(t.Context(), "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "second", got)
	})

	t.Run("concurrent writers never expose partial payloads", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)

		payloads := make([]string, 8)
		for i := range payloads {
			payloads[i] = strings.Repeat(fmt.Sprintf("%d", i), 4096)
		}

		var wg sync.WaitGroup
		for _, p := range payloads {
			wg.Go(func() {
				assert.NoError(t, s.Put(t.Context(), "shared", p))
			})
			wg.Go(func() {
				got, ok, err := s.Get(t.Context(), "shared")
				assert.NoError(t, err)
				if ok {
					assert.Contains(t, payloads, got)
				}
			})
		}
		wg.Wait()

		got, ok, err := s.Get(t.Context(), "shared")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Contains(t, payloads, got)
	})

	t.Run("distinct keys", func(t *testing.T) {
		t.Parallel()
		s := newStore(t)

		key := cache.DeriveKey("Compare Player A and Player B", []string{"career_stats"})
		require.NoError(t, cache.Save(t.Context(), s, cache.Artifact{Key: key, Stage: cache.StageGathered, Payload: "data"}))

		_, ok, err := cache.Load(t.Context(), s, key, cache.StageReport)
		require.NoError(t, err)
		assert.False(t, ok)

		a, ok, err := cache.Load(t.Context(), s, key, cache.StageGathered)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "data", a.Payload)
	})
}
