// Package agent defines the reasoning capability that pipeline stages
// drive, and the contract every implementation is held to.
//
// An invocation emits an ordered stream of events that ends with exactly one
// terminal event, Completed or Error. Independent tool calls inside one
// invocation may run concurrently, so their ToolCallStarted and ToolResult
// events may interleave, but all of them precede the terminal event.
// Consumers must never reorder the stream.
package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// Agent is a reasoning loop bound to a tool set.
type Agent interface {
	// Invoke starts one invocation. The returned channel is closed after
	// the terminal event. Implementations must stop promptly once ctx is
	// done.
	Invoke(ctx context.Context, prompt, instructions string) <-chan Event
}

// Func adapts a function to the Agent interface.
type Func func(ctx context.Context, prompt, instructions string) <-chan Event

func (f Func) Invoke(ctx context.Context, prompt, instructions string) <-chan Event {
	return f(ctx, prompt, instructions)
}

// Send delivers ev on out unless ctx is done first.
func Send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Recover turns a panic in an agent's producer goroutine into a single
// internal_error event on out. It must be deferred directly, before out is
// closed.
func Recover(ctx context.Context, out chan<- Event, logger *slog.Logger) {
	r := recover()
	if r == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("Agent panicked", "panic", r)
	Send(ctx, out, Error(ErrorTypeInternal, fmt.Sprintf("agent panicked: %v", r)))
}
