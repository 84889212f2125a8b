package service

import (
	"github.com/dkralj/chatsync/internal/domain"
	"github.com/google/uuid"
)

// Session carries the authenticated identity through every service call.
// There is no process-wide current user; each connection or request builds
// its own session and the visibility gate lives for exactly that long.
type Session struct {
	UserID      uuid.UUID
	DisplayName string
	PhotoURL    *string
	Guest       bool

	Gate *VisibilityGate
}

// NewSession builds a session for an authenticated user with an unresolved
// visibility gate.
func NewSession(user *domain.User) *Session {
	return &Session{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		PhotoURL:    user.PhotoURL,
		Gate:        NewVisibilityGate(),
	}
}

// NewGuestSessionIdentity builds a read-only guest session.
func NewGuestSessionIdentity() *Session {
	return &Session{
		UserID:      uuid.New(),
		DisplayName: "Guest",
		Guest:       true,
		Gate:        NewVisibilityGate(),
	}
}
