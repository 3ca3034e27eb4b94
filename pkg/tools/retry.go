package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds the retries of a single tool call.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt. Values below 2 disable retries.
	MaxAttempts     int           `json:"max_attempts" yaml:"max_attempts"`
	InitialInterval time.Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval" yaml:"max_interval"`
}

// DefaultRetryPolicy retries twice with a short exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// WithRetry wraps the tool's handler with bounded exponential backoff.
// Context cancellation and permanent errors stop retrying immediately.
func WithRetry(t Tool, policy RetryPolicy) Tool {
	if policy.MaxAttempts < 2 || t.Handler == nil {
		return t
	}

	inner := t.Handler
	name := t.Name
	t.Handler = func(ctx context.Context, args json.RawMessage) (any, error) {
		b := backoff.NewExponentialBackOff()
		if policy.InitialInterval > 0 {
			b.InitialInterval = policy.InitialInterval
		}
		if policy.MaxInterval > 0 {
			b.MaxInterval = policy.MaxInterval
		}

		attempt := 0
		return backoff.Retry(ctx, func() (any, error) {
			attempt++
			out, err := inner(ctx, args)
			if err == nil {
				return out, nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, backoff.Permanent(err)
			}
			slog.Debug("Tool call attempt failed", "tool", name, "attempt", attempt, "error", err)
			return nil, err
		}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(policy.MaxAttempts)))
	}
	return t
}
