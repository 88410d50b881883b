package decision

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFencedToolCalls(t *testing.T) {
	assert := assert.New(t)

	raw := "```json\n{\"tool_calls\":[{\"name\":\"warn_user\",\"arguments\":{\"reason\":\"spam\"}}]}\n```"
	calls := NormalizeReply(json.RawMessage(raw))
	assert.Equal([]ToolCall{{Name: "warn_user", Arguments: map[string]any{"reason": "spam"}}}, calls)
}

func TestNormalizeShapes(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		name string
		raw  string
		want []ToolCall
	}{
		{
			name: "camel wrapper",
			raw:  `{"toolCalls": [{"name": "delete_message", "args": {"reason": "x"}}]}`,
			want: []ToolCall{{Name: "delete_message", Arguments: map[string]any{"reason": "x"}}},
		},
		{
			name: "bare list",
			raw:  `[{"name": "ignore"}, {"name": "timeout_member", "arguments": {"minutes": 10}}]`,
			want: []ToolCall{
				{Name: "ignore", Arguments: map[string]any{}},
				{Name: "timeout_member", Arguments: map[string]any{"minutes": 10.0}},
			},
		},
		{
			name: "json string entries",
			raw:  `{"tool_calls": ["{\"name\": \"warn_user\", \"arguments\": {\"reason\": \"r\"}}"]}`,
			want: []ToolCall{{Name: "warn_user", Arguments: map[string]any{"reason": "r"}}},
		},
		{
			name: "fenced json string entry",
			raw:  "{\"tool_calls\": [\"```json\\n{\\\"name\\\": \\\"timeout_member\\\", \\\"arguments\\\": {\\\"minutes\\\": 10}}\\n```\"]}",
			want: []ToolCall{{Name: "timeout_member", Arguments: map[string]any{"minutes": 10.0}}},
		},
		{
			name: "plain string entries",
			raw:  `{"tool_calls": ["please timeout them", "Ignore it", "nonsense"]}`,
			want: []ToolCall{
				{Name: "timeout_member", Arguments: map[string]any{"minutes": 30}},
				{Name: "ignore", Arguments: map[string]any{}},
			},
		},
		{
			name: "single decision object",
			raw:  `{"decision": "Delete", "reason": "slur"}`,
			want: []ToolCall{{Name: "delete_message", Arguments: map[string]any{"reason": "slur"}}},
		},
		{
			name: "action key",
			raw:  `{"action": "warn"}`,
			want: []ToolCall{{Name: "warn_user", Arguments: map[string]any{"reason": ""}}},
		},
		{
			name: "stringified arguments",
			raw:  `[{"type": "function", "function": {"name": "escalate", "arguments": "{\"label\": \"mods\"}"}}]`,
			want: []ToolCall{{Name: "escalate", Arguments: map[string]any{"label": "mods"}}},
		},
		{
			name: "string reply",
			raw:  `"Sure! [{\"name\": \"ignore\"}]"`,
			want: []ToolCall{{Name: "ignore", Arguments: map[string]any{}}},
		},
		{
			name: "prose with embedded object",
			raw:  `Here you go: {"tool_calls": [{"name": "warn_user", "arguments": {}}]} hope that helps`,
			want: []ToolCall{{Name: "warn_user", Arguments: map[string]any{}}},
		},
		{
			name: "empty",
			raw:  `{"tool_calls": []}`,
			want: []ToolCall{},
		},
		{
			name: "unknown decision",
			raw:  `{"decision": "escalate"}`,
			want: []ToolCall{},
		},
		{
			name: "garbage",
			raw:  `???`,
			want: []ToolCall{},
		},
	}

	for _, tc := range tests {
		assert.Equal(tc.want, NormalizeReply(json.RawMessage(tc.raw)), tc.name)
	}
}

func TestStripFence(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(`{"a":1}`, StripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(`{"a":1}`, StripFence("```\n{\"a\":1}\n```"))
	assert.Equal(`[1]`, StripFence("text before\n```JSON\n[1]\n``` after"))
	assert.Equal(`no fence`, StripFence("  no fence  "))
}

func TestToolCallArgs(t *testing.T) {
	assert := assert.New(t)

	tc := ToolCall{Name: "timeout_member", Arguments: map[string]any{
		"minutes":          "15",
		"duration_minutes": 20.0,
		"reason":           "",
	}}
	assert.Equal(15, tc.IntArg("minutes", 30))
	assert.Equal(20, tc.IntArg("duration_minutes", 30))
	assert.Equal(30, tc.IntArg("missing", 30))
	assert.Equal("MCP Decision", tc.StringArg("reason", "MCP Decision"))
}
