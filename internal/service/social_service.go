package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/dkralj/chatsync/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrCannotRequestSelf = errors.New("cannot send a connection request to yourself")
	ErrAlreadyConnected  = errors.New("users are already connected")
	ErrUserNotFound      = errors.New("user not found")
)

// SocialService manages the connection graph: accepted edges and directed
// pending requests held on both user records. Every operation mutates the two
// records as a reciprocal pair through a single transactional write, so a
// half-applied edge is never persisted.
type SocialService struct {
	userRepo repository.UserRepository
}

func NewSocialService(userRepo repository.UserRepository) *SocialService {
	return &SocialService{userRepo: userRepo}
}

// SendRequest records a pending request from sender to target:
// sender.pendingOutgoing gains target, target.pendingIncoming gains sender.
func (s *SocialService) SendRequest(ctx context.Context, senderID, targetID uuid.UUID) error {
	if senderID == targetID {
		return ErrCannotRequestSelf
	}
	return s.updatePair(ctx, senderID, targetID, func(sender, target *domain.User) error {
		if sender.HasConnection(targetID) {
			return ErrAlreadyConnected
		}
		sender.PendingOutgoing = domain.AddID(sender.PendingOutgoing, targetID)
		target.PendingIncoming = domain.AddID(target.PendingIncoming, senderID)
		return nil
	})
}

// AcceptRequest converts a pending request from other into an accepted edge on
// both records in the same logical operation.
func (s *SocialService) AcceptRequest(ctx context.Context, userID, otherID uuid.UUID) error {
	return s.updatePair(ctx, userID, otherID, func(user, other *domain.User) error {
		user.PendingIncoming = domain.RemoveID(user.PendingIncoming, otherID)
		user.Connections = domain.AddID(user.Connections, otherID)
		other.PendingOutgoing = domain.RemoveID(other.PendingOutgoing, userID)
		other.Connections = domain.AddID(other.Connections, userID)
		return nil
	})
}

// RejectRequest drops a pending request from other without creating an edge.
func (s *SocialService) RejectRequest(ctx context.Context, userID, otherID uuid.UUID) error {
	return s.updatePair(ctx, userID, otherID, func(user, other *domain.User) error {
		user.PendingIncoming = domain.RemoveID(user.PendingIncoming, otherID)
		other.PendingOutgoing = domain.RemoveID(other.PendingOutgoing, userID)
		return nil
	})
}

// CancelRequest withdraws a request the user previously sent to target.
func (s *SocialService) CancelRequest(ctx context.Context, userID, targetID uuid.UUID) error {
	return s.updatePair(ctx, userID, targetID, func(user, target *domain.User) error {
		user.PendingOutgoing = domain.RemoveID(user.PendingOutgoing, targetID)
		target.PendingIncoming = domain.RemoveID(target.PendingIncoming, userID)
		return nil
	})
}

// RemoveConnection deletes an accepted edge from both records.
func (s *SocialService) RemoveConnection(ctx context.Context, userID, otherID uuid.UUID) error {
	return s.updatePair(ctx, userID, otherID, func(user, other *domain.User) error {
		user.Connections = domain.RemoveID(user.Connections, otherID)
		other.Connections = domain.RemoveID(other.Connections, userID)
		return nil
	})
}

// updatePair loads both records, applies mutate, and persists them through the
// repository's transactional pair write.
func (s *SocialService) updatePair(ctx context.Context, aID, bID uuid.UUID, mutate func(a, b *domain.User) error) error {
	a, err := s.userRepo.GetByID(ctx, aID)
	if err != nil {
		return fmt.Errorf("loading user %s: %w", aID, err)
	}
	if a == nil {
		return ErrUserNotFound
	}

	b, err := s.userRepo.GetByID(ctx, bID)
	if err != nil {
		return fmt.Errorf("loading user %s: %w", bID, err)
	}
	if b == nil {
		return ErrUserNotFound
	}

	if err := mutate(a, b); err != nil {
		return err
	}

	if err := s.userRepo.UpdatePair(ctx, a, b); err != nil {
		return fmt.Errorf("saving pair edit: %w", err)
	}
	return nil
}
