package schemas

import "time"

// Role identifies the author of a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ChatMessage is one entry in the conversation history. Insertion order is
// significant; history windows are simple truncations of the newest N entries.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`

	// ToolCallID and ToolName are set only on tool-role entries. They tie the
	// entry back to the action request that produced it so a planning provider
	// can replay the exchange in its own wire format.
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
}

// NewChatMessage stamps a message with the current time.
func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}

// NewToolMessage records one action outcome as a tool-role entry.
func NewToolMessage(result ActionResult) ChatMessage {
	return ChatMessage{
		Role:       RoleTool,
		Content:    result.Output,
		CreatedAt:  time.Now().UTC(),
		ToolCallID: result.ToolCallID,
		ToolName:   string(result.Name),
	}
}

// TailWindow returns the newest n messages, preserving order. It returns the
// input slice unchanged when it already fits the window.
func TailWindow(history []ChatMessage, n int) []ChatMessage {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
