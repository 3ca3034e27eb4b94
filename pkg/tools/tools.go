// Package tools describes the retrieval capabilities an agent may invoke
// mid-reasoning and how a batch of invocations is executed.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// Handler executes a tool with JSON-encoded arguments and returns any
// JSON-serializable value.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is a named, schema-described capability.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Parameters is a JSON schema object describing the arguments.
	Parameters any     `json:"parameters,omitempty"`
	Handler    Handler `json:"-"`
}

// Call is one request, issued by an agent, to run a tool.
type Call struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"args,omitempty"`
}

// Result is the outcome of a Call. Failures are encoded rather than
// returned as errors so that one failed call never hides its siblings.
type Result struct {
	CallID  string `json:"tool_call_id"`
	Name    string `json:"name"`
	Output  string `json:"output"`
	IsError bool   `json:"is_error,omitempty"`
}

// Set is an immutable collection of tools keyed by name.
type Set struct {
	byName map[string]Tool
	order  []string
}

// NewSet builds a Set. Later tools with a duplicate name replace earlier ones.
func NewSet(ts ...Tool) *Set {
	s := &Set{byName: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		if _, exists := s.byName[t.Name]; !exists {
			s.order = append(s.order, t.Name)
		}
		s.byName[t.Name] = t
	}
	return s
}

// Lookup returns the tool registered under name.
func (s *Set) Lookup(name string) (Tool, bool) {
	if s == nil {
		return Tool{}, false
	}
	t, ok := s.byName[name]
	return t, ok
}

// Tools returns the tools in registration order.
func (s *Set) Tools() []Tool {
	if s == nil {
		return nil
	}
	out := make([]Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}

// Names returns the sorted tool names.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := slices.Clone(s.order)
	slices.Sort(names)
	return names
}

// Len returns the number of tools.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// ErrorResult encodes a failed call.
func ErrorResult(call Call, err error) Result {
	return Result{
		CallID:  call.ID,
		Name:    call.Name,
		Output:  err.Error(),
		IsError: true,
	}
}

// encodeOutput turns a handler's return value into the string fed back to
// the model. Strings and raw JSON pass through untouched.
func encodeOutput(v any) (string, error) {
	switch out := v.(type) {
	case nil:
		return "null", nil
	case string:
		return out, nil
	case []byte:
		return string(out), nil
	case json.RawMessage:
		return string(out), nil
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding tool output: %w", err)
	}
	return string(buf), nil
}
