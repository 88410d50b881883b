package decision

import "fmt"

const SystemPrompt = "You are a moderation assistant. Use the provided tools when appropriate."

func ToolCallPrompt(content string, toxicity float64) string {
	return "A Discord message has been flagged as borderline. Decide which moderation tool(s) to call. " +
		"Return a JSON array of tool-calls, each: {\"name\": \"<tool_name>\", \"arguments\": {...}}.\n\n" +
		fmt.Sprintf("ToxicityScore: %.2f\nMessage:\n%s\n\n", toxicity, content) +
		"Tools available: delete_message, warn_user(reason), timeout_member(duration_minutes, reason), ignore, escalate(label, reason)."
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Wire shape: {"context": {"messages": [...]}, "tools": {"tools": [...]}}
type ChatRequest struct {
	Context ChatContext `json:"context"`
	Tools   ToolBlock   `json:"tools"`
}

type ChatContext struct {
	Messages []ChatMessage `json:"messages"`
}

type ToolBlock struct {
	Tools []map[string]any `json:"tools"`
}

func NewChatRequest(content string, toxicity float64, tools []map[string]any) *ChatRequest {
	if tools == nil {
		tools = []map[string]any{}
	}
	return &ChatRequest{
		Context: ChatContext{
			Messages: []ChatMessage{
				{Role: "system", Content: SystemPrompt},
				{Role: "user", Content: ToolCallPrompt(content, toxicity)},
			},
		},
		Tools: ToolBlock{Tools: tools},
	}
}
