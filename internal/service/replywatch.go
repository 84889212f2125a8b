package service

import (
	"context"
	"sync"

	"github.com/dkralj/chatsync/internal/domain"
)

// ReplyWatcher correlates asynchronous assistant replies with the message
// that triggered them. The send pipeline feeds every persisted message into
// Observe; a waiter registers a predicate for one conversation and receives
// the first matching message, or nothing if its context ends first.
type ReplyWatcher struct {
	mu       sync.Mutex
	watchers map[string][]*replyWaiter
}

type replyWaiter struct {
	match func(domain.Message) bool
	ch    chan domain.Message
	done  <-chan struct{}
}

func NewReplyWatcher() *ReplyWatcher {
	return &ReplyWatcher{watchers: make(map[string][]*replyWaiter)}
}

// Await registers a waiter on conversationID. The returned channel delivers
// the first message satisfying match, then closes. Cancelling ctx removes the
// registration; either outcome leaves nothing behind.
func (w *ReplyWatcher) Await(ctx context.Context, conversationID string, match func(domain.Message) bool) <-chan domain.Message {
	waiter := &replyWaiter{
		match: match,
		ch:    make(chan domain.Message, 1),
		done:  ctx.Done(),
	}

	w.mu.Lock()
	w.watchers[conversationID] = append(w.watchers[conversationID], waiter)
	w.mu.Unlock()

	go func() {
		<-ctx.Done()
		w.remove(conversationID, waiter)
	}()

	return waiter.ch
}

// Observe routes msg to any waiter watching its conversation. A matched
// waiter is removed so it fires at most once.
func (w *ReplyWatcher) Observe(msg domain.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()

	waiters := w.watchers[msg.ConversationID]
	remaining := waiters[:0]
	for _, waiter := range waiters {
		if waiter.match(msg) {
			select {
			case waiter.ch <- msg:
			default:
			}
			close(waiter.ch)
			continue
		}
		remaining = append(remaining, waiter)
	}
	if len(remaining) == 0 {
		delete(w.watchers, msg.ConversationID)
	} else {
		w.watchers[msg.ConversationID] = remaining
	}
}

func (w *ReplyWatcher) remove(conversationID string, target *replyWaiter) {
	w.mu.Lock()
	defer w.mu.Unlock()

	waiters := w.watchers[conversationID]
	for i, waiter := range waiters {
		if waiter == target {
			w.watchers[conversationID] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(w.watchers[conversationID]) == 0 {
		delete(w.watchers, conversationID)
	}
}
