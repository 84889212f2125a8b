package service

import "sync"

// VisibilityGate decides whether the session may send messages based on the
// user's persisted visible flag.
//
// The gate starts Unresolved and fails open: a brand-new session may send
// before the flag has loaded. The first Resolve call latches the gate into the
// resolved state permanently; after that only the resolved value decides, and
// later Resolve calls just update it. The unresolved grace is one-shot per
// gate instance, never re-armed.
type VisibilityGate struct {
	mu       sync.Mutex
	resolved bool
	visible  bool
}

func NewVisibilityGate() *VisibilityGate {
	return &VisibilityGate{}
}

// Resolve records the loaded visibility value and consumes the unresolved
// grace if it is still armed.
func (g *VisibilityGate) Resolve(visible bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resolved = true
	g.visible = visible
}

// CanSend reports whether sending is currently permitted.
func (g *VisibilityGate) CanSend() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.resolved {
		return true
	}
	return g.visible
}

// Resolved reports whether the first resolution has happened.
func (g *VisibilityGate) Resolved() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolved
}
