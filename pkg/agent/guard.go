package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type guarded struct {
	inner Agent
}

// Guard enforces the invocation contract on top of any Agent:
//
//   - a panic while starting the invocation becomes a single Error event;
//   - events are relayed in receipt order and nothing follows the first
//     terminal event;
//   - a stream that closes without a terminal event ends with an
//     agent_error, a missed deadline with a timeout and a cancellation
//     with a cancelled error.
//
// The terminal event is always delivered, so callers must keep reading the
// returned channel until it is closed.
func Guard(a Agent) Agent {
	if g, ok := a.(*guarded); ok {
		return g
	}
	return &guarded{inner: a}
}

func (g *guarded) Invoke(ctx context.Context, prompt, instructions string) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		in, err := g.start(ctx, prompt, instructions)
		if err != nil {
			out <- Error(ErrorTypeInternal, err.Error())
			return
		}

		for {
			select {
			case ev, ok := <-in:
				if !ok {
					out <- unterminated(ctx)
					return
				}
				if ev.IsTerminal() {
					out <- normalizeTerminal(ctx, ev)
					go drain(in)
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					out <- contextFailure(ctx)
					go drain(in)
					return
				}
			case <-ctx.Done():
				out <- contextFailure(ctx)
				go drain(in)
				return
			}
		}
	}()

	return out
}

func (g *guarded) start(ctx context.Context, prompt, instructions string) (in <-chan Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Agent panicked while starting", "panic", r)
			err = fmt.Errorf("agent panicked: %v", r)
		}
	}()

	in = g.inner.Invoke(ctx, prompt, instructions)
	if in == nil {
		return nil, errors.New("agent returned no event stream")
	}
	return in, nil
}

func normalizeTerminal(ctx context.Context, ev Event) Event {
	if ev.Kind == KindCompleted {
		return Completed()
	}
	if ev.Failure == nil {
		ev.Failure = &Failure{Type: ErrorTypeAgent, Message: "agent failed"}
	}
	if ev.Failure.Type == "" {
		ev.Failure.Type = ErrorTypeAgent
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && ev.Failure.Type != ErrorTypeTimeout {
		return Error(ErrorTypeTimeout, ev.Failure.Message)
	}
	return ev
}

func unterminated(ctx context.Context) Event {
	if ctx.Err() != nil {
		return contextFailure(ctx)
	}
	return Error(ErrorTypeAgent, "agent stream ended without a terminal event")
}

func contextFailure(ctx context.Context) Event {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Error(ErrorTypeTimeout, "agent did not finish before its deadline")
	}
	return Error(ErrorTypeCancelled, "agent invocation cancelled")
}

func drain(in <-chan Event) {
	for range in {
	}
}
