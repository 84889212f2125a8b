package ws

import (
	"encoding/json"
	"log"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/google/uuid"
)

// Hub manages all active WebSocket clients and routes events.
type Hub struct {
	// clients maps userID → client.
	clients map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
	route      chan domain.Message
}

type broadcastMsg struct {
	conversationID string
	data           []byte
	excludeID      *uuid.UUID // optional: skip this user (e.g. sender)
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		route:      make(chan domain.Message, 256),
	}
}

// Run starts the Hub's main event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client.userID()] = client
			log.Printf("ws hub: user %s connected (%d total)", client.userID(), len(h.clients))

			h.broadcastPresence(client.userID(), "online")

		case client := <-h.unregister:
			if _, ok := h.clients[client.userID()]; ok {
				delete(h.clients, client.userID())
				close(client.done)
				client.feed.Close()
				log.Printf("ws hub: user %s disconnected (%d total)", client.userID(), len(h.clients))

				h.broadcastPresence(client.userID(), "offline")
			}

		case msg := <-h.route:
			// Each client's feed drops messages for conversations it is
			// not watching, so routing everywhere is safe.
			for _, client := range h.clients {
				client.feed.Apply(msg)
			}

		case msg := <-h.broadcast:
			for _, client := range h.clients {
				if msg.excludeID != nil && client.userID() == *msg.excludeID {
					continue
				}
				if client.feed.Current() != msg.conversationID {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client buffer full, skip this delivery.
				}
			}
		}
	}
}

// Route feeds a newly written message into every connected client's feed.
func (h *Hub) Route(msg domain.Message) {
	h.route <- msg
}

// BroadcastToConversation sends an event to every client watching a
// conversation.
func (h *Hub) BroadcastToConversation(conversationID string, event *Event, excludeUserID *uuid.UUID) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws hub: marshal error: %v", err)
		return
	}
	h.broadcast <- &broadcastMsg{
		conversationID: conversationID,
		data:           data,
		excludeID:      excludeUserID,
	}
}

// BroadcastBotTyping flips the assistant typing indicator for everyone
// watching a conversation.
func (h *Hub) BroadcastBotTyping(conversationID string, typing bool) {
	evt, err := NewEvent(EventTypeBotTyping, BotTypingPayload{
		ConversationID: conversationID,
		Typing:         typing,
	})
	if err != nil {
		return
	}
	h.BroadcastToConversation(conversationID, evt, nil)
}

// HandleTyping broadcasts a typing event to everyone else watching the
// sender's current conversation.
func (h *Hub) HandleTyping(sender *Client, eventType string) {
	if eventType != EventTypeTypingStart {
		return // typing.stop doesn't need broadcast, frontend uses timeout
	}
	conversationID := sender.feed.Current()
	if conversationID == "" {
		return
	}

	evt, err := NewEvent(EventTypeTyping, TypingPayload{
		ConversationID: conversationID,
		UserID:         sender.userID(),
		DisplayName:    sender.session.DisplayName,
	})
	if err != nil {
		return
	}

	senderID := sender.userID()
	h.BroadcastToConversation(conversationID, evt, &senderID)
}

// broadcastPresence sends online/offline to all connected clients.
func (h *Hub) broadcastPresence(userID uuid.UUID, status string) {
	evt, err := NewEvent(EventTypePresence, PresencePayload{
		UserID: userID,
		Status: status,
	})
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	for _, client := range h.clients {
		if client.userID() == userID {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}
