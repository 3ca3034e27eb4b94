package stream

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docker/briefing/pkg/tools"
)

type panickyStringer struct{}

func (panickyStringer) String() string { panic("boom") }

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  any
		want map[string]any
	}{
		{
			name: "human",
			msg:  Message{Role: "user", Content: "Compare A and B"},
			want: map[string]any{"type": "human", "content": "Compare A and B"},
		},
		{
			name: "ai with name",
			msg:  &Message{Role: "assistant", Content: "Part1", Name: "data_gatherer"},
			want: map[string]any{"type": "ai", "content": "Part1", "name": "data_gatherer"},
		},
		{
			name: "ai without name",
			msg:  Message{Role: "ai", Content: "x"},
			want: map[string]any{"type": "ai", "content": "x"},
		},
		{
			name: "pending tool calls omit empty content",
			msg: Message{Role: "assistant", ToolCalls: []tools.Call{
				{ID: "c1", Name: "career_stats", Arguments: json.RawMessage(`{"player":"A"}`)},
				{ID: "c2", Name: "recent_form"},
			}},
			want: map[string]any{"type": "tool_call", "tool_calls": []map[string]any{
				{"name": "career_stats", "args": map[string]any{"player": "A"}, "id": "c1"},
				{"name": "recent_form", "args": map[string]any{}, "id": "c2"},
			}},
		},
		{
			name: "tool call keeps content",
			msg:  Message{Role: "assistant", Content: "let me check", ToolCalls: []tools.Call{{ID: "c1", Name: "x", Arguments: json.RawMessage(`not json`)}}},
			want: map[string]any{"type": "tool_call", "content": "let me check", "tool_calls": []map[string]any{
				{"name": "x", "args": "not json", "id": "c1"},
			}},
		},
		{
			name: "tool result",
			msg:  Message{Role: "tool", Content: "12 goals", ToolCallID: "c1", Name: "career_stats"},
			want: map[string]any{"type": "tool_result", "content": "12 goals", "tool_call_id": "c1", "name": "career_stats"},
		},
		{
			name: "failed tool result",
			msg:  Message{Role: "tool", Content: "Error: timeout", IsError: true},
			want: map[string]any{"type": "tool_result", "content": "Error: timeout", "is_error": true},
		},
		{
			name: "map with role",
			msg:  map[string]any{"role": "human", "content": "hi"},
			want: map[string]any{"type": "human", "content": "hi"},
		},
		{
			name: "map with type and tool calls",
			msg: map[string]any{"type": "ai", "tool_calls": []any{
				map[string]any{"name": "lookup", "args": map[string]any{"q": "A"}, "id": "1"},
				"garbage",
			}},
			want: map[string]any{"type": "tool_call", "tool_calls": []map[string]any{
				{"name": "lookup", "args": map[string]any{"q": "A"}, "id": "1"},
			}},
		},
		{
			name: "map with structured content",
			msg:  map[string]any{"role": "tool", "content": []any{"a", 1.0}},
			want: map[string]any{"type": "tool_result", "content": `["a",1]`},
		},
		{
			name: "unknown role",
			msg:  Message{Role: "system", Content: "be nice"},
			want: map[string]any{"type": "unknown", "content": `{"role":"system","content":"be nice"}`},
		},
		{
			name: "unknown role pointer",
			msg:  &Message{Role: "system", Name: "policy", Content: "be nice"},
			want: map[string]any{"type": "unknown", "content": `{"role":"system","content":"be nice","name":"policy"}`},
		},
		{
			name: "map without role",
			msg:  map[string]any{"foo": "bar"},
			want: map[string]any{"type": "unknown", "content": `{"foo":"bar"}`},
		},
		{name: "nil", msg: nil, want: map[string]any{"type": "unknown", "content": ""}},
		{name: "nil pointer", msg: (*Message)(nil), want: map[string]any{"type": "unknown", "content": ""}},
		{name: "string", msg: "plain", want: map[string]any{"type": "unknown", "content": "plain"}},
		{name: "number", msg: 42, want: map[string]any{"type": "unknown", "content": "42"}},
		{name: "error", msg: errors.New("bad"), want: map[string]any{"type": "unknown", "content": "{}"}},
		{name: "unencodable", msg: make(chan int), want: map[string]any{"type": "unknown"}},
		{name: "panicking stringer", msg: panickyStringer{}, want: map[string]any{"type": "unknown", "content": "stream.panickyStringer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got map[string]any
			assert.NotPanics(t, func() { got = Classify(tt.msg) })
			if tt.name == "unencodable" {
				assert.Equal(t, "unknown", got["type"])
				assert.NotEmpty(t, got["content"])
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
