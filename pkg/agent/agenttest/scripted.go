// Package agenttest provides a deterministic Agent for tests.
package agenttest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/docker/briefing/pkg/agent"
	"github.com/docker/briefing/pkg/tools"
)

// Scripted replays a fixed list of events. When ToolCalls is set, those
// calls run concurrently against Tools before the events are replayed, with
// their ToolCallStarted and ToolResult events forwarded as they happen.
type Scripted struct {
	Events []agent.Event

	Tools     *tools.Set
	ToolCalls []tools.Call

	// Delay is waited before each scripted event.
	Delay time.Duration
	// Block keeps the stream open after the scripted events until ctx is done.
	Block bool
	// Started, when set, is closed at the start of the first invocation.
	Started chan struct{}
	// Panic, when set, is raised by the producer after the scripted events.
	Panic any

	mu      sync.Mutex
	prompts []string
	once    sync.Once
}

// New returns a Scripted agent replaying events.
func New(events ...agent.Event) *Scripted {
	return &Scripted{Events: events}
}

// Reply scripts a successful invocation emitting the given content deltas.
func Reply(deltas ...string) *Scripted {
	events := make([]agent.Event, 0, len(deltas)+1)
	for _, d := range deltas {
		events = append(events, agent.Content(d))
	}
	return New(append(events, agent.Completed())...)
}

func (s *Scripted) Invoke(ctx context.Context, prompt, _ string) <-chan agent.Event {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if s.Started != nil {
		s.once.Do(func() { close(s.Started) })
	}

	out := make(chan agent.Event)
	go func() {
		defer close(out)
		defer agent.Recover(ctx, out, nil)

		if len(s.ToolCalls) > 0 {
			events := make(chan agent.Event)
			go func() {
				defer close(events)
				defer agent.Recover(ctx, events, nil)
				tools.CallAll(ctx, s.Tools, s.ToolCalls, tools.BatchOptions{Hooks: tools.Hooks{
					OnStart:  func(c tools.Call) { agent.Send(ctx, events, agent.ToolCallStarted(c)) },
					OnResult: func(r tools.Result) { agent.Send(ctx, events, agent.ToolResult(r)) },
				}})
			}()
			for ev := range events {
				if !agent.Send(ctx, out, ev) {
					for range events {
					}
					return
				}
			}
		}

		for _, ev := range s.Events {
			if s.Delay > 0 {
				select {
				case <-time.After(s.Delay):
				case <-ctx.Done():
					return
				}
			}
			if !agent.Send(ctx, out, ev) {
				return
			}
		}

		if s.Panic != nil {
			panic(s.Panic)
		}

		if s.Block {
			<-ctx.Done()
		}
	}()

	return out
}

// Calls returns how many times the agent was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// Prompts returns the prompts received so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.prompts)
}
