package decision

import (
	"encoding/json"
	"strings"
)

// Converts a decision-service reply into tool calls. The reply may be a JSON document of several shapes, or free text; the function never fails and returns an empty (non-nil) slice when nothing is actionable.
func NormalizeReply(raw json.RawMessage) []ToolCall {
	v, ok := decodeJSON(string(raw))
	if !ok {
		v, ok = ParseLoose(string(raw))
		if !ok {
			return normalizeText(string(raw))
		}
	}
	return NormalizeToolCalls(v)
}

// Ordered normalization over an already decoded value:
//
//   - string: cleaned and re-parsed as JSON, else matched by keyword
//   - object with tool_calls or toolCalls: the wrapped value
//   - object with name: a single call
//   - object with decision or action: the mapped canonical call
//   - list: each entry normalized on its own
func NormalizeToolCalls(v any) []ToolCall {
	out := []ToolCall{}
	switch val := v.(type) {
	case nil:
	case string:
		if parsed, ok := ParseLoose(val); ok {
			if _, isStr := parsed.(string); !isStr {
				return NormalizeToolCalls(parsed)
			}
		}
		out = append(out, normalizeText(val)...)
	case map[string]any:
		if inner, ok := wrapped(val); ok {
			return NormalizeToolCalls(inner)
		}
		if tc, ok := namedCall(val); ok {
			out = append(out, tc)
		} else if tc, ok := decisionCall(val); ok {
			out = append(out, tc)
		}
	case []any:
		for _, item := range val {
			out = append(out, normalizeEntry(item)...)
		}
	}
	return out
}

func wrapped(m map[string]any) (any, bool) {
	for _, key := range []string{"tool_calls", "toolCalls"} {
		if inner, ok := m[key]; ok {
			return inner, true
		}
	}
	return nil, false
}

func normalizeEntry(item any) []ToolCall {
	switch val := item.(type) {
	case map[string]any:
		if tc, ok := namedCall(val); ok {
			return []ToolCall{tc}
		}
		// OpenAI-style {"type":"function","function":{"name":...,"arguments":"{...}"}}
		if fn, ok := val["function"].(map[string]any); ok {
			if tc, ok := namedCall(fn); ok {
				return []ToolCall{tc}
			}
		}
		if tc, ok := decisionCall(val); ok {
			return []ToolCall{tc}
		}
	case string:
		if parsed, ok := ParseLoose(val); ok {
			if m, ok := parsed.(map[string]any); ok {
				if tc, ok := namedCall(m); ok {
					return []ToolCall{tc}
				}
			}
		}
		return normalizeText(val)
	}
	return nil
}

func namedCall(m map[string]any) (ToolCall, bool) {
	name, ok := m["name"].(string)
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return ToolCall{}, false
	}
	args := arguments(m["arguments"])
	if len(args) == 0 {
		args = arguments(m["args"])
	}
	return ToolCall{Name: name, Arguments: args}, true
}

// Arguments may arrive as an object or as a JSON-encoded object string.
func arguments(v any) map[string]any {
	switch val := v.(type) {
	case map[string]any:
		return val
	case string:
		if parsed, ok := ParseLoose(val); ok {
			if m, ok := parsed.(map[string]any); ok {
				return m
			}
		}
	}
	return map[string]any{}
}

func decisionCall(m map[string]any) (ToolCall, bool) {
	dec, _ := m["decision"].(string)
	if dec == "" {
		dec, _ = m["action"].(string)
	}
	reason, _ := m["reason"].(string)
	switch strings.ToLower(strings.TrimSpace(dec)) {
	case "warn", ToolWarnUser:
		return ToolCall{Name: ToolWarnUser, Arguments: map[string]any{"reason": reason}}, true
	case "delete", ToolDeleteMessage:
		return ToolCall{Name: ToolDeleteMessage, Arguments: map[string]any{"reason": reason}}, true
	case ToolIgnore:
		return ToolCall{Name: ToolIgnore, Arguments: map[string]any{}}, true
	}
	return ToolCall{}, false
}

// Keyword heuristic for plain-text entries. Checked in order: warn, delete, timeout, ignore.
func normalizeText(s string) []ToolCall {
	low := strings.ToLower(s)
	switch {
	case strings.Contains(low, "warn"):
		return []ToolCall{{Name: ToolWarnUser, Arguments: map[string]any{}}}
	case strings.Contains(low, "delete"):
		return []ToolCall{{Name: ToolDeleteMessage, Arguments: map[string]any{}}}
	case strings.Contains(low, "timeout"):
		return []ToolCall{{Name: ToolTimeoutMember, Arguments: map[string]any{"minutes": 30}}}
	case strings.Contains(low, "ignore"):
		return []ToolCall{{Name: ToolIgnore, Arguments: map[string]any{}}}
	}
	return []ToolCall{}
}
