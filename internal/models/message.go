package models

// ChatMessage is a single turn of a conversation. Order within a slice is dialogue order.

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CloneMessages returns a copy of msgs that shares no backing array with it.
func CloneMessages(msgs []ChatMessage) []ChatMessage {
	cloned := make([]ChatMessage, len(msgs))
	copy(cloned, msgs)
	return cloned
}
