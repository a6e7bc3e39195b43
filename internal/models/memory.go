package models

import "time"

// PreferenceKey is the single reserved memory key holding accumulated user
// preferences; every other key is a timestamp-qualified conversation summary.
const PreferenceKey = "preferences"

// MemoryEntry is a durable keyed text record for one (tenant, user) pair.
type MemoryEntry struct {
	Key       string    `json:"key"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}
