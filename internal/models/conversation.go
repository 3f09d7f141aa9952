package models

import "time"

// Conversation groups the ordered history of one chat.
type Conversation struct {
	ID        string        `json:"id"`
	History   []ChatMessage `json:"history"`
	UpdatedAt time.Time     `json:"updated_at"`
}
