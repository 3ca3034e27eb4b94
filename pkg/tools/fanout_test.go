package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constTool(name string, out any) Tool {
	return Tool{
		Name: name,
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return out, nil
		},
	}
}

func failingTool(name string, err error) Tool {
	return Tool{
		Name: name,
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return nil, err
		},
	}
}

func TestCallAll_PartialFailure(t *testing.T) {
	t.Parallel()

	set := NewSet(
		constTool("career_stats", map[string]int{"goals": 300}),
		failingTool("injury_report", errors.New("upstream unavailable")),
		constTool("recent_form", "W W D L W"),
	)
	calls := []Call{
		{ID: "1", Name: "career_stats"},
		{ID: "2", Name: "injury_report"},
		{ID: "3", Name: "recent_form"},
	}

	var mu sync.Mutex
	var started []string
	var finished []Result
	results := CallAll(t.Context(), set, calls, BatchOptions{Hooks: Hooks{
		OnStart: func(c Call) {
			mu.Lock()
			started = append(started, c.ID)
			mu.Unlock()
		},
		OnResult: func(r Result) {
			mu.Lock()
			finished = append(finished, r)
			mu.Unlock()
		},
	}})

	require.Len(t, results, 3)
	assert.Equal(t, Result{CallID: "1", Name: "career_stats", Output: `{"goals":300}`}, results[0])
	assert.True(t, results[1].IsError)
	assert.Equal(t, "upstream unavailable", results[1].Output)
	assert.Equal(t, Result{CallID: "3", Name: "recent_form", Output: "W W D L W"}, results[2])

	assert.ElementsMatch(t, []string{"1", "2", "3"}, started)
	assert.Len(t, finished, 3)
}

func TestCallAll_UnknownToolAndPanic(t *testing.T) {
	t.Parallel()

	set := NewSet(Tool{
		Name: "boom",
		Handler: func(context.Context, json.RawMessage) (any, error) {
			panic("kaboom")
		},
	})

	results := CallAll(t.Context(), set, []Call{
		{ID: "a", Name: "missing"},
		{ID: "b", Name: "boom"},
	}, BatchOptions{})

	require.Len(t, results, 2)
	assert.True(t, results[0].IsError)
	assert.Contains(t, results[0].Output, `"missing" not found`)
	assert.True(t, results[1].IsError)
	assert.Contains(t, results[1].Output, "kaboom")
}

func TestCallAll_HookPanicRaisedOnCaller(t *testing.T) {
	t.Parallel()

	set := NewSet(constTool("a", "ok"), constTool("b", "ok"))
	var finished atomic.Int32

	assert.PanicsWithValue(t, "hook failed", func() {
		CallAll(t.Context(), set, []Call{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}, BatchOptions{Hooks: Hooks{
			OnResult: func(r Result) {
				finished.Add(1)
				if r.CallID == "1" {
					panic("hook failed")
				}
			},
		}})
	})
	assert.Equal(t, int32(2), finished.Load())
}

func TestCallAll_RunsConcurrently(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	slow := Tool{
		Name: "slow",
		Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			return "ok", nil
		},
	}

	calls := []Call{{ID: "1", Name: "slow"}, {ID: "2", Name: "slow"}, {ID: "3", Name: "slow"}}
	results := CallAll(t.Context(), NewSet(slow), calls, BatchOptions{})

	require.Len(t, results, 3)
	assert.Equal(t, int32(3), peak.Load())

	peak.Store(0)
	CallAll(t.Context(), NewSet(slow), calls, BatchOptions{MaxConcurrency: 1})
	assert.Equal(t, int32(1), peak.Load())
}

func TestSet(t *testing.T) {
	t.Parallel()

	set := NewSet(constTool("b", 1), constTool("a", 2), constTool("b", 3))

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"a", "b"}, set.Names())
	assert.Equal(t, "b", set.Tools()[0].Name)

	_, ok := set.Lookup("c")
	assert.False(t, ok)

	var nilSet *Set
	assert.Zero(t, nilSet.Len())
	_, ok = nilSet.Lookup("a")
	assert.False(t, ok)
}
