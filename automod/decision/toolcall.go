package decision

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	ToolDeleteMessage = "delete_message"
	ToolWarnUser      = "warn_user"
	ToolTimeoutMember = "timeout_member"
	ToolEscalate      = "escalate"
	ToolIgnore        = "ignore"
)

type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (tc ToolCall) String() string {
	return fmt.Sprintf("%s%v", tc.Name, tc.Arguments)
}

// String argument, or def when missing or empty. Non-string scalars are formatted.
func (tc ToolCall) StringArg(name, def string) string {
	v, ok := tc.Arguments[name]
	if !ok || v == nil {
		return def
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Integer argument: accepts numbers and numeric strings. Returns def when absent or unparseable.
func (tc ToolCall) IntArg(name string, def int) int {
	v, ok := tc.Arguments[name]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case int64:
		return int(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		if f, err := val.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return int(f)
		}
	}
	return def
}
