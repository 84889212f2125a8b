package repository

import (
	"context"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ListVisible(ctx context.Context, limit int) ([]domain.User, error)
	UpdateVisibility(ctx context.Context, id uuid.UUID, visible bool) error
	TouchLastSeen(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error

	// UpdatePair persists both users' edge sets in a single transaction,
	// locking the rows in canonical order. Social graph edits go through this
	// so a reciprocal pair is never left half-written.
	UpdatePair(ctx context.Context, a, b *domain.User) error
}

type GroupRepository interface {
	Create(ctx context.Context, group *domain.Group) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error)
	ListPublic(ctx context.Context) ([]domain.Group, error)

	// AddMember performs the dual write (group member set + user joined set)
	// in one transaction, creating a stub user row with merge semantics when
	// the user record does not exist yet.
	AddMember(ctx context.Context, groupID, userID uuid.UUID, role string) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error

	UpdateAIUsage(ctx context.Context, groupID uuid.UUID, usage domain.AIUsage) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error

	// ListWindow returns the most recent limit messages of the conversation in
	// ascending creation order.
	ListWindow(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}
