package service

import (
	"context"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/dkralj/chatsync/internal/repository"
	"github.com/google/uuid"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ListPeople returns visible users for the people picker.
func (s *UserService) ListPeople(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	users, err := s.userRepo.ListVisible(ctx, limit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// SetVisibility flips the user's visible flag. The caller's gate should be
// re-resolved with the new value.
func (s *UserService) SetVisibility(ctx context.Context, userID uuid.UUID, visible bool) error {
	return s.userRepo.UpdateVisibility(ctx, userID, visible)
}

// LookupEmail resolves a user's email by ID.
func (s *UserService) LookupEmail(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	return user.Email, nil
}
