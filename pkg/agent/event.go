package agent

import (
	"github.com/docker/briefing/pkg/tools"
)

// Kind identifies the shape of an Event.
type Kind string

const (
	KindContent         Kind = "content"
	KindThinking        Kind = "thinking"
	KindToolCallStarted Kind = "tool_call_started"
	KindToolResult      Kind = "tool_result"
	KindError           Kind = "error"
	KindCompleted       Kind = "completed"
)

// Error types carried by Failure.Type.
const (
	ErrorTypeAgent     = "agent_error"
	ErrorTypeTimeout   = "timeout"
	ErrorTypeCancelled = "cancelled"
	ErrorTypeTool      = "tool_error"
	ErrorTypeInternal  = "internal_error"
)

// Failure is the payload of an Error event.
type Failure struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (f *Failure) Error() string {
	return f.Type + ": " + f.Message
}

// Event is one increment of agent progress. Exactly one of the payload
// fields is set, according to Kind.
type Event struct {
	Kind Kind

	// Text holds the delta for KindContent and KindThinking.
	Text string

	ToolCall   *tools.Call
	ToolResult *tools.Result
	Failure    *Failure
}

// IsTerminal reports whether e ends an invocation.
func (e Event) IsTerminal() bool {
	return e.Kind == KindCompleted || e.Kind == KindError
}

func Content(delta string) Event {
	return Event{Kind: KindContent, Text: delta}
}

func Thinking(delta string) Event {
	return Event{Kind: KindThinking, Text: delta}
}

func ToolCallStarted(call tools.Call) Event {
	return Event{Kind: KindToolCallStarted, ToolCall: &call}
}

func ToolResult(res tools.Result) Event {
	return Event{Kind: KindToolResult, ToolResult: &res}
}

func Error(errType, message string) Event {
	return Event{Kind: KindError, Failure: &Failure{Type: errType, Message: message}}
}

func Completed() Event {
	return Event{Kind: KindCompleted}
}
