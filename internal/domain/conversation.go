package domain

import (
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidUserID is returned when a conversation ID is derived from an
// empty participant identifier.
var ErrInvalidUserID = errors.New("invalid user id for conversation")

// conversationSep never occurs in UUID strings, so sorted concatenation
// cannot collide across distinct unordered pairs.
const conversationSep = "_"

// DeriveConversationID computes the canonical partition ID for a private
// conversation between two users. It is commutative: both participants derive
// the same ID regardless of who initiated.
func DeriveConversationID(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", ErrInvalidUserID
	}
	if a > b {
		a, b = b, a
	}
	return a + conversationSep + b, nil
}

// Target identifies the conversation a client is viewing: one private peer or
// one group.
type Target struct {
	Kind    TargetKind
	PeerID  uuid.UUID // private only
	GroupID uuid.UUID // group only
}

type TargetKind string

const (
	TargetPrivate TargetKind = "private"
	TargetGroup   TargetKind = "group"
)

// ConversationID resolves the target's storage partition for the given
// viewer. Private targets derive the pair ID; group targets use the group ID.
func (t Target) ConversationID(viewer uuid.UUID) (string, error) {
	switch t.Kind {
	case TargetPrivate:
		if t.PeerID == uuid.Nil || viewer == uuid.Nil {
			return "", ErrInvalidUserID
		}
		return DeriveConversationID(viewer.String(), t.PeerID.String())
	case TargetGroup:
		if t.GroupID == uuid.Nil {
			return "", ErrInvalidUserID
		}
		return t.GroupID.String(), nil
	default:
		return "", ErrInvalidUserID
	}
}
