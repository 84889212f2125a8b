package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/dkralj/chatsync/internal/repository"
	"github.com/google/uuid"
)

// In-memory repository fakes. They mirror the repository contracts closely
// enough for service tests: GetByID returns nil on a miss, lists come back
// ascending, and the dual writes mutate both sides.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]domain.User)}
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func (r *fakeUserRepo) put(u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.put(*user)
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ListVisible(ctx context.Context, limit int) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		if u.Visible {
			out = append(out, u)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeUserRepo) UpdateVisibility(ctx context.Context, id uuid.UUID, visible bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if ok {
		u.Visible = visible
		r.users[id] = u
	}
	return nil
}

func (r *fakeUserRepo) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if ok {
		u.LastSeen = time.Now()
		r.users[id] = u
	}
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) UpdatePair(ctx context.Context, a, b *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[a.ID] = *a
	r.users[b.ID] = *b
	return nil
}

type fakeGroupRepo struct {
	mu     sync.Mutex
	groups map[uuid.UUID]domain.Group
	users  *fakeUserRepo
}

func newFakeGroupRepo(users *fakeUserRepo) *fakeGroupRepo {
	return &fakeGroupRepo{groups: make(map[uuid.UUID]domain.Group), users: users}
}

var _ repository.GroupRepository = (*fakeGroupRepo)(nil)

func (r *fakeGroupRepo) put(g domain.Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[g.ID] = g
}

func (r *fakeGroupRepo) Create(ctx context.Context, group *domain.Group) error {
	r.put(*group)
	return nil
}

func (r *fakeGroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (r *fakeGroupRepo) ListPublic(ctx context.Context) ([]domain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Group
	for _, g := range r.groups {
		if g.Visibility == domain.GroupPublic {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *fakeGroupRepo) AddMember(ctx context.Context, groupID, userID uuid.UUID, role string) error {
	r.mu.Lock()
	g, ok := r.groups[groupID]
	if !ok {
		r.mu.Unlock()
		return ErrGroupNotFound
	}
	g.Members = domain.AddID(g.Members, userID)
	g.MembersCount = len(g.Members)
	if g.Roles == nil {
		g.Roles = make(map[string]string)
	}
	if _, has := g.Roles[userID.String()]; !has {
		g.Roles[userID.String()] = role
	}
	r.groups[groupID] = g
	r.mu.Unlock()

	user, _ := r.users.GetByID(ctx, userID)
	if user == nil {
		// Stub record with merge semantics, like the real dual write.
		user = &domain.User{ID: userID, CreatedAt: time.Now()}
	}
	user.GroupsJoined = domain.AddID(user.GroupsJoined, groupID)
	r.users.put(*user)
	return nil
}

func (r *fakeGroupRepo) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	r.mu.Lock()
	g, ok := r.groups[groupID]
	if !ok {
		r.mu.Unlock()
		return ErrGroupNotFound
	}
	g.Members = domain.RemoveID(g.Members, userID)
	g.MembersCount = len(g.Members)
	delete(g.Roles, userID.String())
	r.groups[groupID] = g
	r.mu.Unlock()

	if user, _ := r.users.GetByID(ctx, userID); user != nil {
		user.GroupsJoined = domain.RemoveID(user.GroupsJoined, groupID)
		r.users.put(*user)
	}
	return nil
}

func (r *fakeGroupRepo) UpdateAIUsage(ctx context.Context, groupID uuid.UUID, usage domain.AIUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if ok {
		g.AIUsage = usage
		r.groups[groupID] = g
	}
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []domain.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

var _ repository.MessageRepository = (*fakeMessageRepo)(nil)

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) ListWindow(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *fakeMessageRepo) count(conversationID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			n++
		}
	}
	return n
}

func (r *fakeMessageRepo) lastOf(conversationID string) *domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].ConversationID == conversationID {
			m := r.messages[i]
			return &m
		}
	}
	return nil
}
