package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message types. A file message carries File; an aiResponse message is
// authored by the assistant identity.
const (
	MessageText       = "text"
	MessageFile       = "file"
	MessageAIResponse = "aiResponse"
)

// BotUserID is the reserved sender identity for assistant replies.
var BotUserID = uuid.MustParse("00000000-0000-4000-8000-000000000b07")

type Message struct {
	ID uuid.UUID `json:"id"`

	// ConversationID names the partition the message belongs to: a derived
	// private-pair ID or a group ID string.
	ConversationID string `json:"conversation_id"`

	SenderID uuid.UUID `json:"sender_id"`
	// Sender display name and photo are snapshotted at send time so history
	// renders without a user lookup.
	SenderName   string  `json:"name"`
	SenderAvatar *string `json:"avatar,omitempty"`

	// ReceiverID is set for private messages only.
	ReceiverID *uuid.UUID `json:"receiver_id,omitempty"`

	Text     string          `json:"text"`
	Type     string          `json:"type"`
	File     *FileAttachment `json:"file,omitempty"`
	Mentions []string        `json:"mentions,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type FileAttachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// FromBot reports whether the message was authored by the assistant identity.
func (m *Message) FromBot() bool {
	return m.SenderID == BotUserID
}
