package ws

import "github.com/dkralj/chatsync/internal/domain"

// HubNotifier adapts the Hub to the message service's notifier interface.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// NotifyNewMessage folds a freshly written message into every watching feed.
func (n *HubNotifier) NotifyNewMessage(msg *domain.Message) {
	if msg == nil {
		return
	}
	n.hub.Route(*msg)
}

// NotifyBotTyping flips the assistant typing indicator for a conversation.
func (n *HubNotifier) NotifyBotTyping(conversationID string, typing bool) {
	n.hub.BroadcastBotTyping(conversationID, typing)
}
