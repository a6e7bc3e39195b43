package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry in a live conversation. Assistant messages carry
// the actions still awaiting confirmation; the slice is nil once everything
// is resolved so clients can tell "nothing pending" from "empty".
type ChatMessage struct {
	ID             string             `json:"id"`
	Role           Role               `json:"role"`
	Content        string             `json:"content"`
	CreatedAt      time.Time          `json:"created_at"`
	PendingActions []ActionDescriptor `json:"pending_actions,omitempty"`
}
