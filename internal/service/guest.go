package service

import (
	"context"
	"sync"
	"time"
)

// GuestTTL is the hard ceiling on a read-only guest session.
const GuestTTL = 3600 * time.Second

// GuestSession tracks a read-only session's remaining lifetime at one-second
// resolution and fires onExpire exactly once when it runs out.
type GuestSession struct {
	start time.Time
	ttl   time.Duration

	mu       sync.Mutex
	expired  bool
	onExpire func()
}

func NewGuestSession(onExpire func()) *GuestSession {
	return &GuestSession{
		start:    time.Now(),
		ttl:      GuestTTL,
		onExpire: onExpire,
	}
}

// Remaining returns the time left, never negative.
func (g *GuestSession) Remaining() time.Duration {
	left := g.ttl - time.Since(g.start)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the session has run out.
func (g *GuestSession) Expired() bool {
	return g.Remaining() == 0
}

// Watch ticks every second until the session expires or ctx ends. It is the
// caller's countdown loop; the expiry callback runs at most once.
func (g *GuestSession) Watch(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.Expired() {
				g.expire()
				return
			}
		}
	}
}

func (g *GuestSession) expire() {
	g.mu.Lock()
	already := g.expired
	g.expired = true
	g.mu.Unlock()

	if !already && g.onExpire != nil {
		g.onExpire()
	}
}
