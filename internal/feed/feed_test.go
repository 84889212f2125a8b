package feed

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/google/uuid"
)

type stubLoader struct {
	mu      sync.Mutex
	windows map[string][]domain.Message
	delay   time.Duration
}

func newStubLoader() *stubLoader {
	return &stubLoader{windows: make(map[string][]domain.Message)}
}

func (l *stubLoader) ListWindow(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := l.windows[conversationID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func msgAt(conversationID string, at time.Time, text string) domain.Message {
	return domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       uuid.New(),
		Text:           text,
		CreatedAt:      at,
	}
}

func recvSnapshot(t *testing.T, f *Feed) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-f.Snapshots():
		if !ok {
			t.Fatal("snapshot channel closed unexpectedly")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return Snapshot{}
	}
}

func TestSwitchDeliversInitialWindow(t *testing.T) {
	loader := newStubLoader()
	now := time.Now()
	loader.windows["conv-a"] = []domain.Message{
		msgAt("conv-a", now.Add(-2*time.Minute), "first"),
		msgAt("conv-a", now.Add(-time.Minute), "second"),
	}

	f := New(loader)
	defer f.Close()

	if err := f.Switch(context.Background(), "conv-a"); err != nil {
		t.Fatalf("Switch: %v", err)
	}

	snap := recvSnapshot(t, f)
	if snap.ConversationID != "conv-a" {
		t.Errorf("snapshot conversation = %q, want conv-a", snap.ConversationID)
	}
	if len(snap.Messages) != 2 || snap.Messages[0].Text != "first" {
		t.Errorf("unexpected window: %+v", snap.Messages)
	}
}

func TestApplyAppendsAndReplaces(t *testing.T) {
	loader := newStubLoader()
	f := New(loader)
	defer f.Close()

	if err := f.Switch(context.Background(), "conv-a"); err != nil {
		t.Fatal(err)
	}
	recvSnapshot(t, f) // empty initial window

	m := msgAt("conv-a", time.Now(), "draft")
	f.Apply(m)
	snap := recvSnapshot(t, f)
	if len(snap.Messages) != 1 || snap.Messages[0].Text != "draft" {
		t.Fatalf("after append: %+v", snap.Messages)
	}

	// Same ID comes back with the server-resolved text: replace, not dup.
	m.Text = "final"
	f.Apply(m)
	snap = recvSnapshot(t, f)
	if len(snap.Messages) != 1 || snap.Messages[0].Text != "final" {
		t.Errorf("after replace: %+v", snap.Messages)
	}
}

func TestApplyDropsOtherConversations(t *testing.T) {
	loader := newStubLoader()
	f := New(loader)
	defer f.Close()

	if err := f.Switch(context.Background(), "conv-a"); err != nil {
		t.Fatal(err)
	}
	recvSnapshot(t, f)

	f.Apply(msgAt("conv-b", time.Now(), "stray"))

	select {
	case snap := <-f.Snapshots():
		t.Errorf("stray message produced a snapshot: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWindowTrimsToMostRecent(t *testing.T) {
	loader := newStubLoader()
	f := New(loader)
	defer f.Close()

	if err := f.Switch(context.Background(), "conv-a"); err != nil {
		t.Fatal(err)
	}
	recvSnapshot(t, f)

	base := time.Now()
	for i := 0; i < WindowSize+10; i++ {
		f.Apply(msgAt("conv-a", base.Add(time.Duration(i)*time.Second), fmt.Sprintf("m%d", i)))
	}

	var last Snapshot
	for {
		select {
		case snap, ok := <-f.Snapshots():
			if !ok {
				t.Fatal("channel closed")
			}
			last = snap
			continue
		case <-time.After(50 * time.Millisecond):
		}
		break
	}

	if len(last.Messages) != WindowSize {
		t.Fatalf("window size = %d, want %d", len(last.Messages), WindowSize)
	}
	if last.Messages[0].Text != "m10" {
		t.Errorf("oldest kept = %q, want m10", last.Messages[0].Text)
	}
	if last.Messages[len(last.Messages)-1].Text != fmt.Sprintf("m%d", WindowSize+9) {
		t.Errorf("newest kept = %q", last.Messages[len(last.Messages)-1].Text)
	}
}

func TestSwitchTearsDownBeforeReplace(t *testing.T) {
	loader := newStubLoader()
	loader.windows["conv-b"] = []domain.Message{msgAt("conv-b", time.Now(), "welcome")}

	f := New(loader)
	defer f.Close()

	if err := f.Switch(context.Background(), "conv-a"); err != nil {
		t.Fatal(err)
	}
	recvSnapshot(t, f)

	if err := f.Switch(context.Background(), "conv-b"); err != nil {
		t.Fatal(err)
	}

	// Messages for the old target must be dropped once the switch began.
	f.Apply(msgAt("conv-a", time.Now(), "stale"))

	snap := recvSnapshot(t, f)
	if snap.ConversationID != "conv-b" {
		t.Fatalf("snapshot for %q, want conv-b", snap.ConversationID)
	}
	for _, m := range snap.Messages {
		if m.ConversationID == "conv-a" {
			t.Error("old-target message leaked into the new window")
		}
	}
}

func TestStaleLoadDiscarded(t *testing.T) {
	loader := newStubLoader()
	loader.windows["conv-slow"] = []domain.Message{msgAt("conv-slow", time.Now(), "late")}
	loader.windows["conv-fast"] = []domain.Message{msgAt("conv-fast", time.Now(), "fresh")}

	f := New(loader)
	defer f.Close()

	loader.delay = 100 * time.Millisecond
	slowDone := make(chan error, 1)
	go func() { slowDone <- f.Switch(context.Background(), "conv-slow") }()
	time.Sleep(10 * time.Millisecond)

	loader.delay = 0
	if err := f.Switch(context.Background(), "conv-fast"); err != nil {
		t.Fatal(err)
	}
	if err := <-slowDone; err != nil {
		t.Fatalf("slow switch: %v", err)
	}

	snap := recvSnapshot(t, f)
	if snap.ConversationID != "conv-fast" {
		t.Fatalf("first snapshot for %q, want conv-fast", snap.ConversationID)
	}
	if f.Current() != "conv-fast" {
		t.Errorf("current = %q, the stale load must not win", f.Current())
	}

	select {
	case snap := <-f.Snapshots():
		t.Errorf("stale load emitted a snapshot: %+v", snap)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDetachGoesIdle(t *testing.T) {
	loader := newStubLoader()
	f := New(loader)
	defer f.Close()

	if err := f.Switch(context.Background(), "conv-a"); err != nil {
		t.Fatal(err)
	}
	recvSnapshot(t, f)

	f.Detach()
	if f.Current() != "" {
		t.Errorf("current = %q after detach, want idle", f.Current())
	}

	f.Apply(msgAt("conv-a", time.Now(), "after detach"))
	select {
	case snap := <-f.Snapshots():
		t.Errorf("detached feed delivered: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	f := New(newStubLoader())
	f.Close()
	f.Close()

	if err := f.Switch(context.Background(), "conv-a"); err != ErrClosed {
		t.Errorf("Switch after close: got %v, want ErrClosed", err)
	}
	if _, ok := <-f.Snapshots(); ok {
		t.Error("snapshot channel should be closed")
	}
}
