package transport

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Update is one inbound event from the chat platform.
type Update struct {
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	DisablePreview bool
}

// Adapter is the platform transport consumed by the dispatcher and the
// command router.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// ConversationID renders a chat target as the opaque conversation key used
// by the engagement engine and the persisted state ("tg:<chat>" or
// "tg:<chat>:<thread>").
func ConversationID(t ChatTarget) string {
	if t.ThreadID != 0 {
		return fmt.Sprintf("tg:%d:%d", t.ChatID, t.ThreadID)
	}
	return fmt.Sprintf("tg:%d", t.ChatID)
}

// ParseConversationID is the inverse of ConversationID.
func ParseConversationID(id string) (ChatTarget, error) {
	parts := strings.Split(strings.TrimSpace(id), ":")
	if len(parts) < 2 || parts[0] != "tg" {
		return ChatTarget{}, fmt.Errorf("malformed conversation id %q", id)
	}
	chatID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ChatTarget{}, fmt.Errorf("malformed conversation id %q: %w", id, err)
	}
	t := ChatTarget{ChatID: chatID}
	if len(parts) >= 3 {
		thread, err := strconv.Atoi(parts[2])
		if err != nil {
			return ChatTarget{}, fmt.Errorf("malformed conversation id %q: %w", id, err)
		}
		t.ThreadID = thread
	}
	return t, nil
}
