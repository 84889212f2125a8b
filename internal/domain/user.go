package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	PhotoURL     *string   `json:"photo_url,omitempty"`

	// Visible gates whether the user can send and receive messages.
	// New accounts default to visible.
	Visible bool `json:"visible"`

	// Connections holds accepted bidirectional edges. PendingIncoming and
	// PendingOutgoing hold directed request edges: A.PendingOutgoing contains B
	// iff B.PendingIncoming contains A. The two sides are always written as a
	// pair inside one transaction.
	Connections     []uuid.UUID `json:"connections"`
	PendingIncoming []uuid.UUID `json:"pending_incoming"`
	PendingOutgoing []uuid.UUID `json:"pending_outgoing"`

	GroupsJoined []uuid.UUID `json:"groups_joined"`

	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// HasConnection reports whether other is an accepted connection.
func (u *User) HasConnection(other uuid.UUID) bool {
	return ContainsID(u.Connections, other)
}

// HasJoined reports whether the user is recorded as a member of the group.
func (u *User) HasJoined(groupID uuid.UUID) bool {
	return ContainsID(u.GroupsJoined, groupID)
}

// ContainsID reports whether id is in ids.
func ContainsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// AddID appends id if absent, preserving set semantics.
func AddID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	if ContainsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

// RemoveID removes id if present. Removing an absent id is a no-op.
func RemoveID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
