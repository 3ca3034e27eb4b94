package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/briefing/pkg/cache"
	"github.com/docker/briefing/pkg/cache/cachetest"
)

func TestMemory(t *testing.T) {
	t.Parallel()

	cachetest.Run(t, func(*testing.T) cache.Store { return cache.NewMemory() })
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := cache.NewRegistry()

	s, err := r.CreateStore(t.Context(), cache.Config{})
	require.NoError(t, err)
	assert.IsType(t, &cache.Memory{}, s)

	_, err = r.CreateStore(t.Context(), cache.Config{Kind: "redis"})
	var unsupported *cache.UnsupportedKindError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "redis", unsupported.Kind)

	r.Register("custom", cache.FactoryFunc(func(context.Context, cache.Config) (cache.Store, error) {
		return cache.NewMemory(), nil
	}))
	assert.Equal(t, []string{"custom", "memory"}, r.Kinds())
}

func TestSave_RefusesBlankPayload(t *testing.T) {
	t.Parallel()

	s := cache.NewMemory()
	key := cache.DeriveKey("topic", nil)

	err := cache.Save(t.Context(), s, cache.Artifact{Key: key, Stage: cache.StageGathered, Payload: "  \n"})
	require.ErrorIs(t, err, cache.ErrEmptyPayload)

	_, ok, err := s.Get(t.Context(), key.For(cache.StageGathered))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoad_TreatsBlankAsMiss(t *testing.T) {
	t.Parallel()

	s := cache.NewMemory()
	key := cache.DeriveKey("topic", nil)
	require.NoError(t, s.Put(t.Context(), key.For(cache.StageReport), ""))

	_, ok, err := cache.Load(t.Context(), s, key, cache.StageReport)
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (failingStore) Put(context.Context, string, string) error {
	return errors.New("connection refused")
}

func (failingStore) Close() error { return nil }

type countingObserver struct {
	mu      sync.Mutex
	lookups map[string]int
	writes  int
}

func (o *countingObserver) ObserveLookup(stage, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lookups == nil {
		o.lookups = map[string]int{}
	}
	o.lookups[stage+"/"+result]++
}

func (o *countingObserver) ObserveWriteError(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes++
}

func TestInstrumented(t *testing.T) {
	t.Parallel()

	obs := &countingObserver{}
	s := cache.Instrumented(cache.NewMemory(), obs)

	_, _, _ = s.Get(t.Context(), "gathered:a")
	require.NoError(t, s.Put(t.Context(), "gathered:a", "x"))
	_, _, _ = s.Get(t.Context(), "gathered:a")

	broken := cache.Instrumented(failingStore{}, obs)
	_, _, err := broken.Get(t.Context(), "report:a")
	require.Error(t, err)
	require.Error(t, broken.Put(t.Context(), "report:a", "x"))

	assert.Equal(t, map[string]int{
		"gathered/miss": 1,
		"gathered/hit":  1,
		"report/error":  1,
	}, obs.lookups)
	assert.Equal(t, 1, obs.writes)
}
