package stream

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/google/uuid"

	"github.com/docker/briefing/pkg/agent"
	"github.com/docker/briefing/pkg/pipeline"
	"github.com/docker/briefing/pkg/tools"
)

// Translator turns the updates of one run into external events. A
// Translator is single use.
type Translator struct {
	sessionID string
	assigned  bool
	logger    *slog.Logger
}

type Opt func(*Translator)

func WithLogger(logger *slog.Logger) Opt {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTranslator returns a Translator whose session id is threadID, or a new
// UUID when threadID is empty.
func NewTranslator(threadID string, opts ...Opt) *Translator {
	t := &Translator{
		sessionID: threadID,
		logger:    slog.Default(),
	}
	if t.sessionID == "" {
		t.sessionID = uuid.New().String()
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SessionID returns the id every event of this run is tagged with.
func (t *Translator) SessionID() string {
	return t.sessionID
}

// Run consumes updates until the channel is closed and writes the resulting
// events to sink. graph_end is written exactly once, last, on every path.
// After a translation fault or a sink failure the remaining updates are
// drained without being written so the producer never blocks. The returned
// error is the first sink failure.
func (t *Translator) Run(ctx context.Context, updates <-chan pipeline.Update, sink Sink) error {
	var (
		sinkErr error
		halted  bool
	)

	for u := range updates {
		if halted {
			continue
		}

		events, err := t.translate(u)
		if err != nil {
			t.logger.Error("Failed to translate update", "kind", u.Kind, "stage", u.Stage, "error", err)
			events = []ExternalEvent{newEvent(TypeError, map[string]any{
				"message": err.Error(),
				"type":    agent.ErrorTypeInternal,
			})}
			halted = true
		}

		for _, ev := range events {
			if err := t.emit(sink, ev); err != nil {
				t.logger.Debug("Sink rejected event, draining run", "type", ev.Type, "error", err)
				sinkErr = err
				halted = true
				break
			}
		}

		if ctx.Err() != nil && !halted {
			t.logger.Debug("Client gone, draining run", "session_id", t.sessionID)
			halted = true
		}
	}

	if err := t.emit(sink, newEvent(TypeGraphEnd, nil)); err != nil && sinkErr == nil {
		sinkErr = err
	}
	return sinkErr
}

// emit tags ev with the session id. The first event of a run also carries
// the id in its payload. A panicking sink counts as a failed write.
func (t *Translator) emit(sink Sink, ev ExternalEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Sink panicked", "type", ev.Type, "panic", r)
			err = fmt.Errorf("sink panicked while writing %s event: %v", ev.Type, r)
		}
	}()

	ev.SessionID = t.sessionID
	if !t.assigned {
		t.assigned = true
		data := maps.Clone(ev.Data)
		if data == nil {
			data = map[string]any{}
		}
		data["session_id"] = t.sessionID
		ev.Data = data
	}
	return sink.Send(ev)
}

func (t *Translator) translate(u pipeline.Update) (events []ExternalEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error while translating %s update: %v", u.Kind, r)
		}
	}()

	switch u.Kind {
	case pipeline.UpdateStageStarted:
		return one(TypeNodeUpdate, map[string]any{"node": u.Stage}), nil
	case pipeline.UpdatePrompt:
		return one(TypeMessage, Classify(Message{Role: RoleHuman, Content: u.Text})), nil
	case pipeline.UpdateAgentEvent:
		return translateAgentEvent(u.Stage, u.Event), nil
	case pipeline.UpdateCacheHit:
		return one(TypeCacheHit, map[string]any{"key": u.Key}), nil
	case pipeline.UpdateCompleted:
		return one(TypeFinalAnswer, map[string]any{"content": u.Text}), nil
	case pipeline.UpdateFailed:
		if u.Err == nil {
			return one(TypeError, map[string]any{"message": "run failed", "type": agent.ErrorTypeInternal}), nil
		}
		return one(TypeError, map[string]any{"message": u.Err.Error(), "type": u.Err.ErrorType()}), nil
	default:
		return nil, fmt.Errorf("unknown update kind %q", u.Kind)
	}
}

func translateAgentEvent(stage string, ev agent.Event) []ExternalEvent {
	switch ev.Kind {
	case agent.KindContent:
		return one(TypeMessage, Classify(Message{Role: RoleAssistant, Content: ev.Text, Name: stage}))
	case agent.KindThinking:
		return one(TypeThoughtStream, map[string]any{"content": ev.Text})
	case agent.KindToolCallStarted:
		return one(TypeMessage, Classify(Message{Role: RoleAssistant, Name: stage, ToolCalls: []tools.Call{*ev.ToolCall}}))
	case agent.KindToolResult:
		r := ev.ToolResult
		content := r.Output
		if r.IsError {
			content = "Error: " + content
		}
		return one(TypeMessage, Classify(Message{Role: RoleTool, Content: content, Name: r.Name, ToolCallID: r.CallID, IsError: r.IsError}))
	default:
		// Terminal agent events are reported through Completed and Failed.
		return nil
	}
}

func one(t EventType, data map[string]any) []ExternalEvent {
	return []ExternalEvent{newEvent(t, data)}
}
