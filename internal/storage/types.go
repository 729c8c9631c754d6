package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSON file backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled and all state lives
// in memory only.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Turn is one message of a conversation's recent history.
// Role is "user" or "assistant".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionRecord is the persisted state of one conversation.
type SessionRecord struct {
	ConversationID   string    `json:"conversation_id"`
	Subscribed       bool      `json:"subscribed"`
	AutoUnsubscribed bool      `json:"auto_unsubscribed,omitempty"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	LastUserAt       time.Time `json:"last_user_at"`
	LastFiredTag     string    `json:"last_fired_tag,omitempty"`
	PersonaID        string    `json:"persona_id,omitempty"`
	History          []Turn    `json:"history,omitempty"`
}

// ReminderRecord is one scheduled reminder.
//
// Kind "once" uses DueAt ("2006-01-02 15:04", wall time in the service
// timezone). Kind "daily" uses TimeOfDay ("15:04"); LastFiredDate holds
// the "2006-01-02" of the most recent delivery so restarts within the
// same minute do not refire.
type ReminderRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Content        string    `json:"content"`
	Kind           string    `json:"kind"`
	DueAt          string    `json:"due_at,omitempty"`
	TimeOfDay      string    `json:"time_of_day,omitempty"`
	LastFiredDate  string    `json:"last_fired_date,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
