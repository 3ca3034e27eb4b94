package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	tool := WithRetry(Tool{
		Name: "flaky",
		Handler: func(context.Context, json.RawMessage) (any, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("temporary")
			}
			return "done", nil
		},
	}, fastPolicy(3))

	out, err := tool.Handler(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	tool := WithRetry(failingToolCounting(&calls, errors.New("still down")), fastPolicy(2))

	_, err := tool.Handler(t.Context(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still down")
	assert.Equal(t, 2, calls)
}

func TestWithRetry_PermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	calls := 0
	tool := WithRetry(failingToolCounting(&calls, Permanent(errors.New("bad arguments"))), fastPolicy(5))

	_, err := tool.Handler(t.Context(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad arguments")
	assert.Equal(t, 1, calls)
}

func TestWithRetry_DisabledPolicyKeepsHandler(t *testing.T) {
	t.Parallel()

	calls := 0
	tool := WithRetry(failingToolCounting(&calls, errors.New("nope")), RetryPolicy{MaxAttempts: 1})

	_, err := tool.Handler(t.Context(), nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func failingToolCounting(calls *int, err error) Tool {
	return Tool{
		Name: "failing",
		Handler: func(context.Context, json.RawMessage) (any, error) {
			*calls++
			return nil, err
		},
	}
}
