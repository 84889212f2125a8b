package ws

import (
	"encoding/json"
	"time"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/dkralj/chatsync/internal/feed"
	"github.com/google/uuid"
)

// Event types - Client → Server
const (
	EventTypeConversationOpen  = "conversation.open"
	EventTypeConversationClose = "conversation.close"
	EventTypeMessageSend       = "message.send"
	EventTypeTypingStart       = "typing.start"
	EventTypeTypingStop        = "typing.stop"
	EventTypePing              = "ping"
)

// Event types - Server → Client
const (
	EventTypeSnapshot           = "conversation.snapshot"
	EventTypeConversationDenied = "conversation.denied"
	EventTypeTyping             = "typing"
	EventTypeBotTyping          = "bot.typing"
	EventTypePresence           = "presence"
	EventTypeGuestCountdown     = "guest.countdown"
	EventTypePong               = "pong"
	EventTypeError              = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type ConversationOpenPayload struct {
	Kind    domain.TargetKind `json:"kind"`
	PeerID  uuid.UUID         `json:"peer_id,omitempty"`
	GroupID uuid.UUID         `json:"group_id,omitempty"`
}

type MessageSendPayload struct {
	Kind    domain.TargetKind `json:"kind"`
	PeerID  uuid.UUID         `json:"peer_id,omitempty"`
	GroupID uuid.UUID         `json:"group_id,omitempty"`
	Text    string            `json:"text"`
}

// --- Server → Client payloads ---

type SnapshotPayload struct {
	feed.Snapshot
}

// ConversationDeniedPayload tells the client to show the denial notice and
// move to the redirect path after the grace delay.
type ConversationDeniedPayload struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Redirect   string `json:"redirect"`
	GraceMilli int64  `json:"grace_ms"`
}

type TypingPayload struct {
	ConversationID string    `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	DisplayName    string    `json:"display_name"`
}

type BotTypingPayload struct {
	ConversationID string `json:"conversation_id"`
	Typing         bool   `json:"typing"`
}

type PresencePayload struct {
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"` // "online" | "offline"
}

type GuestCountdownPayload struct {
	RemainingSeconds int64 `json:"remaining_seconds"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
