package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docker/briefing/pkg/tools"
)

// Message roles understood by Classify. Aliases are accepted on input.
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a conversational message as seen by a client.
type Message struct {
	Role       string       `json:"role"`
	Content    string       `json:"content,omitempty"`
	Name       string       `json:"name,omitempty"`
	ToolCalls  []tools.Call `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	IsError    bool         `json:"is_error,omitempty"`
}

// Message payload types.
const (
	MessageHuman      = "human"
	MessageAI         = "ai"
	MessageToolCall   = "tool_call"
	MessageToolResult = "tool_result"
	MessageUnknown    = "unknown"
)

// Classify turns any message-like value into the payload of a message event.
// It is total: unrecognized shapes, including nil, classify as unknown with
// their stringified form as content, and it never panics.
func Classify(msg any) (out map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Message classification panicked", "panic", r)
			out = map[string]any{"type": MessageUnknown, "content": safeString(msg)}
		}
	}()

	switch m := msg.(type) {
	case Message:
		return classifyMessage(m)
	case *Message:
		if m == nil {
			return unknown(nil)
		}
		return classifyMessage(*m)
	case map[string]any:
		if parsed, ok := messageFromMap(m); ok {
			return classifyMessage(parsed)
		}
	}
	return unknown(msg)
}

func classifyMessage(m Message) map[string]any {
	switch normalizeRole(m.Role) {
	case RoleHuman:
		return map[string]any{"type": MessageHuman, "content": m.Content}
	case RoleAssistant:
		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]any, 0, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				calls = append(calls, map[string]any{"name": c.Name, "args": decodeArgs(c.Arguments), "id": c.ID})
			}
			out := map[string]any{"type": MessageToolCall, "tool_calls": calls}
			if m.Content != "" {
				out["content"] = m.Content
			}
			return out
		}
		out := map[string]any{"type": MessageAI, "content": m.Content}
		if m.Name != "" {
			out["name"] = m.Name
		}
		return out
	case RoleTool:
		out := map[string]any{"type": MessageToolResult, "content": m.Content}
		if m.ToolCallID != "" {
			out["tool_call_id"] = m.ToolCallID
		}
		if m.Name != "" {
			out["name"] = m.Name
		}
		if m.IsError {
			out["is_error"] = true
		}
		return out
	default:
		return unknown(m)
	}
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "human", "user":
		return RoleHuman
	case "assistant", "ai":
		return RoleAssistant
	case "tool", "tool_result", "function":
		return RoleTool
	default:
		return ""
	}
}

// messageFromMap reads a loosely typed message. The role may be given under
// "role" or "type".
func messageFromMap(m map[string]any) (Message, bool) {
	role, _ := m["role"].(string)
	if role == "" {
		role, _ = m["type"].(string)
	}
	if normalizeRole(role) == "" {
		return Message{}, false
	}

	msg := Message{Role: role, Content: stringify(m["content"])}
	msg.Name, _ = m["name"].(string)
	msg.ToolCallID, _ = m["tool_call_id"].(string)
	msg.IsError, _ = m["is_error"].(bool)

	if raw, ok := m["tool_calls"].([]any); ok {
		for _, item := range raw {
			call, ok := item.(map[string]any)
			if !ok {
				continue
			}
			c := tools.Call{}
			c.ID, _ = call["id"].(string)
			c.Name, _ = call["name"].(string)
			if args, ok := call["args"]; ok && args != nil {
				if buf, err := json.Marshal(args); err == nil {
					c.Arguments = buf
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, c)
		}
	}
	return msg, true
}

func decodeArgs(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func unknown(msg any) map[string]any {
	return map[string]any{"type": MessageUnknown, "content": stringify(msg)}
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	if buf, err := json.Marshal(v); err == nil {
		return string(buf)
	}
	return fmt.Sprintf("%v", v)
}

// safeString stringifies v without letting a misbehaving String method
// escape.
func safeString(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = fmt.Sprintf("%T", v)
		}
	}()
	return stringify(v)
}
