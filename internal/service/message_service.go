package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/dkralj/chatsync/internal/botapi"
	"github.com/dkralj/chatsync/internal/domain"
	"github.com/dkralj/chatsync/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNotVisible     = errors.New("your account is set to invisible, enable visibility to send messages")
	ErrNotConnected   = errors.New("you are not connected with this user")
	ErrGuestReadOnly  = errors.New("guest sessions are read only")
	ErrUploadFailed   = errors.New("attachment upload failed")
	ErrBotUnavailable = errors.New("assistant is unavailable")
)

const (
	// windowSize bounds the live conversation window.
	windowSize = 50

	// botReplyTimeout is the hard ceiling on the assistant-reply wait.
	botReplyTimeout = 20 * time.Second

	// clockSkewTolerance lets a bot reply stamped slightly before the
	// triggering message still count as its answer.
	clockSkewTolerance = 2 * time.Second

	// botContextSize caps the history items sent along with a bot call.
	botContextSize = 10
)

// Notifier broadcasts real-time events to connected clients.
type Notifier interface {
	NotifyNewMessage(msg *domain.Message)
	NotifyBotTyping(conversationID string, typing bool)
}

// AttachmentStore uploads a file and returns its retrievable form.
type AttachmentStore interface {
	Upload(ctx context.Context, name, contentType string, size int64, r io.Reader) (*domain.FileAttachment, error)
}

// AssistantClient talks to the external bot API.
type AssistantClient interface {
	Chat(ctx context.Context, req botapi.ChatRequest) (*botapi.ChatResponse, error)
}

// PushPublisher fans a new-message notification out to a recipient's devices.
type PushPublisher interface {
	PublishNewMessage(ctx context.Context, recipientID uuid.UUID, title, body string) error
}

// AttachmentUpload is a pending file selected for a send.
type AttachmentUpload struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// MessageService runs the send pipeline: validate, upload, write, and for
// group messages with an assistant trigger, the correlated reply wait.
type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	groupRepo   repository.GroupRepository

	storage AttachmentStore
	bot     AssistantClient
	push    PushPublisher

	notifier Notifier
	replies  *ReplyWatcher

	replyTimeout time.Duration
	clockSkew    time.Duration
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	groupRepo repository.GroupRepository,
) *MessageService {
	return &MessageService{
		messageRepo:  messageRepo,
		userRepo:     userRepo,
		groupRepo:    groupRepo,
		replies:      NewReplyWatcher(),
		replyTimeout: botReplyTimeout,
		clockSkew:    clockSkewTolerance,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetAttachmentStore sets the file upload backend (optional dependency).
func (s *MessageService) SetAttachmentStore(store AttachmentStore) {
	s.storage = store
}

// SetAssistant sets the bot API client (optional dependency).
func (s *MessageService) SetAssistant(bot AssistantClient) {
	s.bot = bot
}

// SetPushPublisher sets the notification fan-out (optional dependency).
func (s *MessageService) SetPushPublisher(p PushPublisher) {
	s.push = p
}

// Replies exposes the reply watcher so transports can feed externally
// observed messages into correlation.
func (s *MessageService) Replies() *ReplyWatcher {
	return s.replies
}

type SendMessageInput struct {
	Target     domain.Target
	Text       string
	Attachment *AttachmentUpload
}

// Send validates and persists one message. On error nothing has been written
// past the failed step, so the caller keeps the drafted input.
func (s *MessageService) Send(ctx context.Context, session *Session, input SendMessageInput) (*domain.Message, error) {
	if session.Guest {
		return nil, ErrGuestReadOnly
	}
	if strings.TrimSpace(input.Text) == "" && input.Attachment == nil {
		return nil, ErrEmptyMessage
	}
	if !session.Gate.CanSend() {
		return nil, ErrNotVisible
	}

	conversationID, err := input.Target.ConversationID(session.UserID)
	if err != nil {
		return nil, err
	}

	var (
		receiverID *uuid.UUID
		group      *domain.Group
	)
	switch input.Target.Kind {
	case domain.TargetPrivate:
		sender, err := s.userRepo.GetByID(ctx, session.UserID)
		if err != nil {
			return nil, err
		}
		if sender == nil || !sender.HasConnection(input.Target.PeerID) {
			return nil, ErrNotConnected
		}
		peer := input.Target.PeerID
		receiverID = &peer

	case domain.TargetGroup:
		group, err = s.groupRepo.GetByID(ctx, input.Target.GroupID)
		if err != nil {
			return nil, err
		}
		if group == nil {
			return nil, ErrGroupNotFound
		}
		user, err := s.userRepo.GetByID(ctx, session.UserID)
		if err != nil {
			return nil, err
		}
		var joined []uuid.UUID
		if user != nil {
			joined = user.GroupsJoined
		}
		if CheckAccess(group, session.UserID, joined) != AccessGranted {
			return nil, ErrAccessDenied
		}
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       session.UserID,
		SenderName:     session.DisplayName,
		SenderAvatar:   session.PhotoURL,
		ReceiverID:     receiverID,
		Text:           input.Text,
		Type:           domain.MessageText,
		Mentions:       detectMentions(input.Text),
		CreatedAt:      time.Now(),
	}

	if input.Attachment != nil {
		if s.storage == nil {
			return nil, ErrUploadFailed
		}
		file, err := s.storage.Upload(ctx,
			input.Attachment.Name, input.Attachment.ContentType,
			input.Attachment.Size, input.Attachment.Reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		msg.Type = domain.MessageFile
		msg.File = file
	}

	if err := s.persist(ctx, msg); err != nil {
		return nil, fmt.Errorf("writing message: %w", err)
	}

	s.fanOutPush(msg, group)

	if input.Target.Kind == domain.TargetGroup && hasBotTrigger(input.Text) {
		if s.consumeAIQuota(ctx, group) {
			go s.awaitBotReply(group, *msg)
		}
	}

	return msg, nil
}

// ListWindow returns the most recent window of a conversation the session may
// read, in ascending creation order.
func (s *MessageService) ListWindow(ctx context.Context, session *Session, target domain.Target) ([]domain.Message, error) {
	conversationID, err := target.ConversationID(session.UserID)
	if err != nil {
		return nil, err
	}

	if target.Kind == domain.TargetGroup {
		group, err := s.groupRepo.GetByID(ctx, target.GroupID)
		if err != nil {
			return nil, err
		}
		if group == nil {
			return nil, ErrGroupNotFound
		}
		user, err := s.userRepo.GetByID(ctx, session.UserID)
		if err != nil {
			return nil, err
		}
		var joined []uuid.UUID
		if user != nil {
			joined = user.GroupsJoined
		}
		if CheckAccess(group, session.UserID, joined) != AccessGranted {
			return nil, ErrAccessDenied
		}
	}

	messages, err := s.messageRepo.ListWindow(ctx, conversationID, windowSize)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// persist writes the message and feeds every consumer that tracks new
// messages: the live feed notifier and the reply correlation watcher.
func (s *MessageService) persist(ctx context.Context, msg *domain.Message) error {
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.NotifyNewMessage(msg)
	}
	s.replies.Observe(*msg)
	return nil
}

// awaitBotReply runs the correlation race: first of {matching bot message
// observed, reply timeout} wins and cancels the other. The typing indicator
// is cleared on every exit path.
func (s *MessageService) awaitBotReply(group *domain.Group, trigger domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.replyTimeout)
	defer cancel()

	if s.notifier != nil {
		s.notifier.NotifyBotTyping(trigger.ConversationID, true)
		defer s.notifier.NotifyBotTyping(trigger.ConversationID, false)
	}

	since := trigger.CreatedAt.Add(-s.clockSkew)
	matched := s.replies.Await(ctx, trigger.ConversationID, func(m domain.Message) bool {
		return m.FromBot() && !m.CreatedAt.Before(since)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.deliverBotReply(ctx, group, trigger)
	}()

	select {
	case <-matched:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Printf("bot: reply for conversation %s failed: %v", trigger.ConversationID, err)
			return
		}
		// Reply written; wait for it to come back through correlation.
		select {
		case <-matched:
		case <-ctx.Done():
		}
	}
}

// deliverBotReply calls the bot API with recent context and writes the
// assistant's answer into the conversation.
func (s *MessageService) deliverBotReply(ctx context.Context, group *domain.Group, trigger domain.Message) error {
	if s.bot == nil {
		return ErrBotUnavailable
	}

	recent, err := s.messageRepo.ListWindow(ctx, trigger.ConversationID, botContextSize)
	if err != nil {
		log.Printf("bot: loading context for %s: %v", trigger.ConversationID, err)
		recent = nil
	}
	items := make([]botapi.ContextItem, 0, len(recent))
	for _, m := range recent {
		items = append(items, botapi.ContextItem{Sender: m.SenderName, Text: m.Text})
	}

	resp, err := s.bot.Chat(ctx, botapi.ChatRequest{
		Message:  trigger.Text,
		GroupID:  group.ID.String(),
		UserID:   trigger.SenderID.String(),
		Username: trigger.SenderName,
		Context:  items,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBotUnavailable, err)
	}

	reply := &domain.Message{
		ID:             uuid.New(),
		ConversationID: trigger.ConversationID,
		SenderID:       domain.BotUserID,
		SenderName:     resp.BotName,
		Text:           resp.Response,
		Type:           domain.MessageAIResponse,
		CreatedAt:      time.Now(),
	}
	if reply.SenderName == "" {
		reply.SenderName = "ExplainBot"
	}

	if err := s.persist(ctx, reply); err != nil {
		return fmt.Errorf("writing bot reply: %w", err)
	}
	return nil
}

// consumeAIQuota checks and increments the group's daily assistant counter.
// Counters reset when the date key rolls over; a zero limit means unlimited.
func (s *MessageService) consumeAIQuota(ctx context.Context, group *domain.Group) bool {
	usage := group.AIUsage.UsageFor(usageDateKey(time.Now()))
	if limit := group.Settings.AIExplainLimitPerDay; limit > 0 && usage.ExplainCallsToday >= limit {
		log.Printf("bot: group %s hit daily assistant limit (%d)", group.ID, limit)
		return false
	}
	usage.ExplainCallsToday++
	if err := s.groupRepo.UpdateAIUsage(ctx, group.ID, usage); err != nil {
		log.Printf("bot: updating usage for group %s: %v", group.ID, err)
	}
	group.AIUsage = usage
	return true
}

// fanOutPush publishes push notifications for the new message. Failures are
// logged and never block or fail the send.
func (s *MessageService) fanOutPush(msg *domain.Message, group *domain.Group) {
	if s.push == nil {
		return
	}

	body := msg.Text
	if msg.Type == domain.MessageFile && body == "" {
		body = "Sent a file"
	}

	var recipients []uuid.UUID
	var title string
	if msg.ReceiverID != nil {
		recipients = []uuid.UUID{*msg.ReceiverID}
		title = fmt.Sprintf("New message from %s", msg.SenderName)
	} else if group != nil {
		title = fmt.Sprintf("New message in %s from %s", group.Name, msg.SenderName)
		for _, id := range group.Members {
			if id != msg.SenderID {
				recipients = append(recipients, id)
			}
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, id := range recipients {
			if err := s.push.PublishNewMessage(ctx, id, title, body); err != nil {
				log.Printf("push: notifying %s: %v", id, err)
			}
		}
	}()
}
