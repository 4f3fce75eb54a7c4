package models

// Message roles. The order of messages in a conversation is chronological
// and significant; messages are immutable once sent.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the payload sent to the chat, reason and search endpoints.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}
