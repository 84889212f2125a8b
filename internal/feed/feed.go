// Package feed maintains one client's live view of a conversation: a bounded,
// ordered window of the most recent messages, delivered as complete snapshots.
package feed

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dkralj/chatsync/internal/domain"
)

// WindowSize bounds the live window to the most recent N messages.
const WindowSize = 50

var ErrClosed = errors.New("feed is closed")

// Loader fetches the current window of a conversation in ascending order.
type Loader interface {
	ListWindow(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}

// Snapshot is one authoritative-complete delivery: consumers replace their
// in-memory list with Messages wholesale, never patch incrementally.
type Snapshot struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []domain.Message `json:"messages"`
}

// Feed tracks exactly one conversation at a time. Switching targets tears the
// old watch down before the new one is installed, so a consumer never sees
// interleaved deliveries from two targets.
type Feed struct {
	loader Loader

	mu             sync.Mutex
	epoch          uint64
	conversationID string
	window         []domain.Message
	closed         bool

	out chan Snapshot
}

func New(loader Loader) *Feed {
	return &Feed{
		loader: loader,
		out:    make(chan Snapshot, 8),
	}
}

// Snapshots is the delivery channel. It closes when the feed closes.
func (f *Feed) Snapshots() <-chan Snapshot {
	return f.out
}

// Current returns the active conversation ID, or "" when idle.
func (f *Feed) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversationID
}

// Switch retargets the feed. The previous target is detached immediately —
// before the new window loads — so nothing from it is delivered once the
// switch has begun. A load error leaves the feed idle; the caller may retry
// by switching again.
func (f *Feed) Switch(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.epoch++
	epoch := f.epoch
	f.conversationID = ""
	f.window = nil
	f.mu.Unlock()

	window, err := f.loader.ListWindow(ctx, conversationID, WindowSize)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.epoch != epoch {
		// A newer Switch or Close won the race; this load is stale.
		return nil
	}
	f.conversationID = conversationID
	f.window = window
	f.emitLocked()
	return nil
}

// Apply folds a newly observed message into the window. Messages for other
// targets are dropped. The window is re-sorted on every apply because server
// timestamps may resolve after an optimistic local insert.
func (f *Feed) Apply(msg domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || msg.ConversationID != f.conversationID {
		return
	}

	replaced := false
	for i := range f.window {
		if f.window[i].ID == msg.ID {
			f.window[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		f.window = append(f.window, msg)
	}

	sort.SliceStable(f.window, func(i, j int) bool {
		if f.window[i].CreatedAt.Equal(f.window[j].CreatedAt) {
			return f.window[i].ID.String() < f.window[j].ID.String()
		}
		return f.window[i].CreatedAt.Before(f.window[j].CreatedAt)
	})

	if len(f.window) > WindowSize {
		f.window = f.window[len(f.window)-WindowSize:]
	}

	f.emitLocked()
}

// Detach drops the current target and leaves the feed idle. Any in-flight
// Switch load is invalidated.
func (f *Feed) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.epoch++
	f.conversationID = ""
	f.window = nil
}

// Close detaches the feed and closes the delivery channel. Idempotent.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.conversationID = ""
	f.window = nil
	close(f.out)
}

// emitLocked delivers the current window as a fresh snapshot. Every snapshot
// is complete, so when the consumer lags the oldest pending one is dropped in
// favor of the newer state.
func (f *Feed) emitLocked() {
	msgs := make([]domain.Message, len(f.window))
	copy(msgs, f.window)
	snap := Snapshot{ConversationID: f.conversationID, Messages: msgs}

	for {
		select {
		case f.out <- snap:
			return
		default:
			select {
			case <-f.out:
			default:
			}
		}
	}
}
