package models

import "time"

// Conversation turn roles. Append rejects anything else.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a multi-turn conversation. Turns are append-only:
// they are inserted once and never updated.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadSummary describes a recent conversation thread.
type ThreadSummary struct {
	ThreadTS    string    `json:"thread_ts"`
	ChannelID   string    `json:"channel_id"`
	LastUpdated time.Time `json:"last_updated"`
}
