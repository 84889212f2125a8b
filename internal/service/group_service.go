package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/dkralj/chatsync/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrAccessDenied  = errors.New("access to this group is denied")
	ErrNotGroupAdmin = errors.New("only a group admin can perform this action")
)

// Access is the membership gate's verdict for one user and one group.
type Access int

const (
	AccessDenied Access = iota
	AccessGranted
)

// CheckAccess decides whether a user may read/write the group's messages:
// public groups are open to everyone; private groups require membership on
// either the group's member set or the user's joined set. A nil group denies.
func CheckAccess(group *domain.Group, userID uuid.UUID, joined []uuid.UUID) Access {
	if group == nil {
		return AccessDenied
	}
	switch group.Visibility {
	case domain.GroupPublic:
		return AccessGranted
	case domain.GroupPrivate:
		if group.IsMember(userID) || domain.ContainsID(joined, group.ID) {
			return AccessGranted
		}
		return AccessDenied
	default:
		return AccessDenied
	}
}

type GroupService struct {
	groupRepo repository.GroupRepository
	userRepo  repository.UserRepository
}

func NewGroupService(groupRepo repository.GroupRepository, userRepo repository.UserRepository) *GroupService {
	return &GroupService{
		groupRepo: groupRepo,
		userRepo:  userRepo,
	}
}

type CreateGroupInput struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	Visibility           string `json:"visibility"`
	AIExplainLimitPerDay int    `json:"ai_explain_limit_per_day"`
	AllowSummarize       bool   `json:"allow_summarize"`
	RAGEnabled           bool   `json:"rag_enabled"`
}

// Create creates a group with the owner as its sole admin member and records
// the group on the owner's joined set.
func (s *GroupService) Create(ctx context.Context, ownerID uuid.UUID, input CreateGroupInput) (*domain.Group, error) {
	visibility := input.Visibility
	if visibility == "" {
		visibility = domain.GroupPublic
	}

	group := &domain.Group{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Visibility:  visibility,
		CreatedBy:   ownerID,
		CreatedAt:   time.Now(),
		Roles: map[string]string{
			ownerID.String(): domain.RoleAdmin,
		},
		Members:      []uuid.UUID{ownerID},
		MembersCount: 1,
		Settings: domain.GroupSettings{
			AIExplainLimitPerDay: input.AIExplainLimitPerDay,
			AllowSummarize:       input.AllowSummarize,
			RAGEnabled:           input.RAGEnabled,
		},
		AIUsage: domain.AIUsage{
			DateKey: usageDateKey(time.Now()),
		},
	}

	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}

	// The create already lists the owner as member; the join keeps the
	// owner's joined set in step and is a no-op on the group side.
	if err := s.groupRepo.AddMember(ctx, group.ID, ownerID, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("recording owner membership: %w", err)
	}

	return group, nil
}

// Get returns the group if the user passes the membership gate.
func (s *GroupService) Get(ctx context.Context, userID, groupID uuid.UUID) (*domain.Group, error) {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	var joined []uuid.UUID
	if user != nil {
		joined = user.GroupsJoined
	}

	if CheckAccess(group, userID, joined) != AccessGranted {
		return nil, ErrAccessDenied
	}
	return group, nil
}

// ListPublic returns the public group directory.
func (s *GroupService) ListPublic(ctx context.Context) ([]domain.Group, error) {
	groups, err := s.groupRepo.ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	return groups, nil
}

// Join adds the user to the group with the given role (member when empty).
// The dual write — group member set and user joined set — happens in one
// repository transaction, and a missing user record is created with merge
// semantics so invite-link joins work for brand-new accounts.
func (s *GroupService) Join(ctx context.Context, groupID, userID uuid.UUID, role string) error {
	if role == "" {
		role = domain.RoleMember
	}
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrGroupNotFound
	}
	if err := s.groupRepo.AddMember(ctx, groupID, userID, role); err != nil {
		return fmt.Errorf("joining group: %w", err)
	}
	return nil
}

// Leave is the structural inverse of Join.
func (s *GroupService) Leave(ctx context.Context, groupID, userID uuid.UUID) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrGroupNotFound
	}
	if err := s.groupRepo.RemoveMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("leaving group: %w", err)
	}
	return nil
}

func usageDateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
