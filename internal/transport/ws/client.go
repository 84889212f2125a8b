package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/dkralj/chatsync/internal/feed"
	"github.com/dkralj/chatsync/internal/repository"
	"github.com/dkralj/chatsync/internal/service"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBufSize  = 256

	// accessDeniedGrace is how long the client shows the denial notice
	// before moving to the redirect target.
	accessDeniedGrace = 2 * time.Second
)

// Deps are the services a connection needs to answer client events.
type Deps struct {
	Users    repository.UserRepository
	Groups   *service.GroupService
	Messages *service.MessageService
	Loader   feed.Loader
}

// Client represents a single WebSocket connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	deps    Deps
	session *service.Session

	// feed is this connection's live conversation window. Opening a
	// conversation retargets it; the hub folds new messages into it.
	feed *feed.Feed

	// guest is non-nil for read-only guest connections.
	guest *service.GuestSession

	send chan []byte
	done chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, deps Deps, session *service.Session) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		deps:    deps,
		session: session,
		feed:    feed.New(deps.Loader),
		send:    make(chan []byte, sendBufSize),
		done:    make(chan struct{}),
	}
}

func (c *Client) userID() uuid.UUID {
	return c.session.UserID
}

// ReadPump reads messages from the WebSocket and routes them.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		err := wsjson.Read(context.Background(), c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				log.Printf("ws: client %s disconnected", c.userID())
			} else {
				log.Printf("ws: read error from %s: %v", c.userID(), err)
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				log.Printf("ws: write error to %s: %v", c.userID(), err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				log.Printf("ws: ping error to %s: %v", c.userID(), err)
				return
			}

		case <-c.done:
			return
		}
	}
}

// SnapshotPump forwards every feed snapshot to the client. It ends when the
// feed closes on unregister.
func (c *Client) SnapshotPump() {
	for snap := range c.feed.Snapshots() {
		evt, err := NewEvent(EventTypeSnapshot, SnapshotPayload{Snapshot: snap})
		if err != nil {
			continue
		}
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		case <-c.done:
			return
		}
	}
}

// GuestPump drives the read-only session countdown: one event per second,
// and a close when the session runs out.
func (c *Client) GuestPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.done
		cancel()
	}()

	go c.guest.Watch(ctx)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			remaining := c.guest.Remaining()
			c.sendEvent(EventTypeGuestCountdown, GuestCountdownPayload{
				RemainingSeconds: int64(remaining.Seconds()),
			})
			if remaining == 0 {
				return
			}
		}
	}
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypeConversationOpen:
		var p ConversationOpenPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid conversation.open payload")
			return
		}
		c.handleOpen(p)

	case EventTypeConversationClose:
		c.feed.Detach()

	case EventTypeMessageSend:
		var p MessageSendPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			c.sendError("INVALID_PAYLOAD", "invalid message.send payload")
			return
		}
		c.handleSend(p)

	case EventTypeTypingStart, EventTypeTypingStop:
		c.hub.HandleTyping(c, event.Type)

	case EventTypePing:
		c.sendPong()

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

// handleOpen gates the requested conversation and, if allowed, retargets the
// feed. The first snapshot follows over the feed channel.
func (c *Client) handleOpen(p ConversationOpenPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	target := domain.Target{Kind: p.Kind, PeerID: p.PeerID, GroupID: p.GroupID}

	switch target.Kind {
	case domain.TargetPrivate:
		if c.session.Guest {
			c.sendDenied("GUEST_READ_ONLY", "Sign in to start a chat")
			return
		}
		user, err := c.deps.Users.GetByID(ctx, c.userID())
		if err != nil {
			c.sendError("INTERNAL", "could not open conversation")
			return
		}
		if user == nil || !user.HasConnection(target.PeerID) {
			c.sendDenied("NOT_CONNECTED", "You're not connected with this user yet")
			return
		}

	case domain.TargetGroup:
		if _, err := c.deps.Groups.Get(ctx, c.userID(), target.GroupID); err != nil {
			switch {
			case errors.Is(err, service.ErrAccessDenied):
				c.sendDenied("ACCESS_DENIED", "You don't have access to this group")
			case errors.Is(err, service.ErrGroupNotFound):
				c.sendDenied("NOT_FOUND", "This group no longer exists")
			default:
				c.sendError("INTERNAL", "could not open conversation")
			}
			return
		}

	default:
		c.sendError("INVALID_PAYLOAD", "unknown conversation kind")
		return
	}

	conversationID, err := target.ConversationID(c.userID())
	if err != nil {
		c.sendError("INVALID_PAYLOAD", err.Error())
		return
	}

	if err := c.feed.Switch(ctx, conversationID); err != nil && !errors.Is(err, feed.ErrClosed) {
		log.Printf("ws: loading window for %s: %v", conversationID, err)
		c.sendError("INTERNAL", "could not load conversation")
	}
}

// handleSend runs a text-only send over the socket. Attachment sends go over
// HTTP where multipart bodies are available.
func (c *Client) handleSend(p MessageSendPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := c.deps.Messages.Send(ctx, c.session, service.SendMessageInput{
		Target: domain.Target{Kind: p.Kind, PeerID: p.PeerID, GroupID: p.GroupID},
		Text:   p.Text,
	})
	if err != nil {
		c.sendError(sendErrorCode(err), err.Error())
	}
}

func sendErrorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrGuestReadOnly):
		return "GUEST_READ_ONLY"
	case errors.Is(err, service.ErrEmptyMessage):
		return "EMPTY_MESSAGE"
	case errors.Is(err, service.ErrNotVisible):
		return "NOT_VISIBLE"
	case errors.Is(err, service.ErrNotConnected):
		return "NOT_CONNECTED"
	case errors.Is(err, service.ErrAccessDenied):
		return "ACCESS_DENIED"
	case errors.Is(err, service.ErrGroupNotFound):
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(Event{Type: EventTypePong})
	select {
	case c.send <- data:
	default:
	}
}

// sendDenied tells the client to show a transient notice and fall back to
// the default view after the grace delay.
func (c *Client) sendDenied(code, message string) {
	c.sendEvent(EventTypeConversationDenied, ConversationDeniedPayload{
		Code:       code,
		Message:    message,
		Redirect:   "/chat",
		GraceMilli: accessDeniedGrace.Milliseconds(),
	})
}

func (c *Client) sendError(code, message string) {
	c.sendEvent(EventTypeError, ErrorPayload{Code: code, Message: message})
}

func (c *Client) sendEvent(eventType string, payload any) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
