package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Hooks observe a batch of calls. Both callbacks run on worker goroutines
// and may be invoked concurrently.
type Hooks struct {
	OnStart  func(Call)
	OnResult func(Result)
}

// BatchOptions tunes CallAll.
type BatchOptions struct {
	Hooks Hooks
	// MaxConcurrency bounds how many calls run at once. Zero means unbounded.
	MaxConcurrency int
}

// CallAll runs every call concurrently and waits for all of them. A failing
// or panicking call becomes an error Result; it never cancels its siblings.
// Results are returned in the order of calls. A panic in a hook is re-raised
// on the calling goroutine once every call has finished.
func CallAll(ctx context.Context, set *Set, calls []Call, opts BatchOptions) []Result {
	results := make([]Result, len(calls))

	var (
		g         errgroup.Group
		hookOnce  sync.Once
		hookPanic any
	)
	if opts.MaxConcurrency > 0 {
		g.SetLimit(opts.MaxConcurrency)
	}

	for i, call := range calls {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					hookOnce.Do(func() { hookPanic = r })
				}
			}()
			if opts.Hooks.OnStart != nil {
				opts.Hooks.OnStart(call)
			}
			res := callOne(ctx, set, call)
			results[i] = res
			if opts.Hooks.OnResult != nil {
				opts.Hooks.OnResult(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	if hookPanic != nil {
		panic(hookPanic)
	}
	return results
}

func callOne(ctx context.Context, set *Set, call Call) Result {
	tool, ok := set.Lookup(call.Name)
	if !ok {
		return ErrorResult(call, fmt.Errorf("tool %q not found", call.Name))
	}
	return Invoke(ctx, tool, call)
}

// Invoke runs a single call against tool. Like CallAll, it reports handler
// errors and panics in the Result.
func Invoke(ctx context.Context, tool Tool, call Call) (res Result) {
	if tool.Handler == nil {
		return ErrorResult(call, fmt.Errorf("tool %q has no handler", call.Name))
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool handler panicked", "tool", call.Name, "call_id", call.ID, "panic", r)
			res = ErrorResult(call, fmt.Errorf("tool %q panicked: %v", call.Name, r))
		}
	}()

	start := time.Now()
	out, err := tool.Handler(ctx, call.Arguments)
	if err != nil {
		slog.Debug("Tool call failed", "tool", call.Name, "call_id", call.ID, "error", err, "duration", time.Since(start))
		return ErrorResult(call, err)
	}

	encoded, err := encodeOutput(out)
	if err != nil {
		return ErrorResult(call, err)
	}

	slog.Debug("Tool call completed", "tool", call.Name, "call_id", call.ID, "duration", time.Since(start))
	return Result{
		CallID: call.ID,
		Name:   call.Name,
		Output: encoded,
	}
}
