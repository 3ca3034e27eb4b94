package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
)

// Sink receives the events of one run in order.
type Sink interface {
	Send(ev ExternalEvent) error
}

// SSEWriter writes events in server-sent events framing:
//
//	event: <type>
//	data: <json>
//
// followed by a blank line. The writer is flushed after every event when it
// supports http.Flusher.
type SSEWriter struct {
	w io.Writer
}

func NewSSEWriter(w io.Writer) *SSEWriter {
	return &SSEWriter{w: w}
}

func (s *SSEWriter) Send(ev ExternalEvent) error {
	data, err := encodeJSON(ev.Data)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// JSONLinesWriter writes one JSON object per event, session id included.
type JSONLinesWriter struct {
	w io.Writer
}

func NewJSONLinesWriter(w io.Writer) *JSONLinesWriter {
	return &JSONLinesWriter{w: w}
}

func (j *JSONLinesWriter) Send(ev ExternalEvent) error {
	data, err := encodeJSON(ev)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", ev.Type, err)
	}
	_, err = fmt.Fprintf(j.w, "%s\n", data)
	return err
}

// encodeJSON marshals v on a single line without HTML escaping.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []ExternalEvent
}

func (r *Recorder) Send(ev ExternalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []ExternalEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]EventType, len(r.events))
	for i, ev := range r.events {
		types[i] = ev.Type
	}
	return types
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev ExternalEvent) error

func (f SinkFunc) Send(ev ExternalEvent) error {
	return f(ev)
}
