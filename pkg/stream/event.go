// Package stream translates orchestrator progress into the external event
// protocol and writes it to clients.
package stream

// EventType is the wire name of an ExternalEvent.
type EventType string

const (
	TypeNodeUpdate    EventType = "node_update"
	TypeMessage       EventType = "message"
	TypeThoughtStream EventType = "thought_stream"
	TypeFinalAnswer   EventType = "final_answer"
	TypeError         EventType = "error"
	TypeGraphEnd      EventType = "graph_end"
	TypeCacheHit      EventType = "cache_hit"
)

// ExternalEvent is one unit of the wire protocol. SessionID routes the event
// to its client and is not part of the SSE payload.
type ExternalEvent struct {
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data"`
	SessionID string         `json:"session_id,omitempty"`
}

func newEvent(t EventType, data map[string]any) ExternalEvent {
	if data == nil {
		data = map[string]any{}
	}
	return ExternalEvent{Type: t, Data: data}
}
