package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GroupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *GroupRepo {
	return &GroupRepo{pool: pool}
}

func (r *GroupRepo) Create(ctx context.Context, group *domain.Group) error {
	roles, err := json.Marshal(group.Roles)
	if err != nil {
		return fmt.Errorf("encoding roles: %w", err)
	}
	settings, err := json.Marshal(group.Settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	usage, err := json.Marshal(group.AIUsage)
	if err != nil {
		return fmt.Errorf("encoding ai usage: %w", err)
	}

	query := `
		INSERT INTO groups (id, name, description, visibility, created_by, created_at,
			roles, members, members_count, settings, ai_usage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.pool.Exec(ctx, query,
		group.ID, group.Name, group.Description, group.Visibility, group.CreatedBy,
		group.CreatedAt, roles, group.Members, group.MembersCount, settings, usage,
	)
	return err
}

func (r *GroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Group, error) {
	query := `
		SELECT id, name, description, visibility, created_by, created_at,
			roles, members, members_count, settings, ai_usage
		FROM groups
		WHERE id = $1`
	group, err := scanGroup(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return group, err
}

func (r *GroupRepo) ListPublic(ctx context.Context) ([]domain.Group, error) {
	query := `
		SELECT id, name, description, visibility, created_by, created_at,
			roles, members, members_count, settings, ai_usage
		FROM groups
		WHERE visibility = 'public'
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	return groups, rows.Err()
}

// AddMember updates the group's member set and the user's joined set in one
// transaction. A missing user row is created as a stub so join-via-invite
// works before the account's first full save.
func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID uuid.UUID, role string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning membership update: %w", err)
	}
	defer tx.Rollback(ctx)

	group, err := lockGroup(ctx, tx, groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return fmt.Errorf("group %s not found", groupID)
	}

	group.Members = domain.AddID(group.Members, userID)
	if group.Roles == nil {
		group.Roles = make(map[string]string)
	}
	group.Roles[userID.String()] = role
	group.MembersCount = len(group.Members)

	if err := saveGroupMembers(ctx, tx, group); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET groups_joined = array_append(groups_joined, $1)
		WHERE id = $2 AND NOT groups_joined @> ARRAY[$1]::uuid[]`, groupID, userID)
	if err != nil {
		return fmt.Errorf("updating joined set: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			now := time.Now()
			_, err = tx.Exec(ctx, `
				INSERT INTO users (id, email, username, display_name, password_hash, visible,
					connections, pending_incoming, pending_outgoing, groups_joined, created_at, last_seen)
				VALUES ($1, '', '', '', '', TRUE, '{}', '{}', '{}', ARRAY[$2]::uuid[], $3, $3)`,
				userID, groupID, now)
			if err != nil {
				return fmt.Errorf("creating stub user: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning membership update: %w", err)
	}
	defer tx.Rollback(ctx)

	group, err := lockGroup(ctx, tx, groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return fmt.Errorf("group %s not found", groupID)
	}

	group.Members = domain.RemoveID(group.Members, userID)
	delete(group.Roles, userID.String())
	group.MembersCount = len(group.Members)

	if err := saveGroupMembers(ctx, tx, group); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET groups_joined = array_remove(groups_joined, $1)
		WHERE id = $2`, groupID, userID); err != nil {
		return fmt.Errorf("updating joined set: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *GroupRepo) UpdateAIUsage(ctx context.Context, groupID uuid.UUID, usage domain.AIUsage) error {
	data, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("encoding ai usage: %w", err)
	}
	_, err = r.pool.Exec(ctx, `UPDATE groups SET ai_usage = $1 WHERE id = $2`, data, groupID)
	return err
}

func lockGroup(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Group, error) {
	query := `
		SELECT id, name, description, visibility, created_by, created_at,
			roles, members, members_count, settings, ai_usage
		FROM groups
		WHERE id = $1
		FOR UPDATE`
	group, err := scanGroup(tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return group, err
}

func saveGroupMembers(ctx context.Context, tx pgx.Tx, group *domain.Group) error {
	roles, err := json.Marshal(group.Roles)
	if err != nil {
		return fmt.Errorf("encoding roles: %w", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE groups
		SET roles = $1, members = $2, members_count = $3
		WHERE id = $4`, roles, group.Members, group.MembersCount, group.ID)
	if err != nil {
		return fmt.Errorf("updating group members: %w", err)
	}
	return nil
}

func scanGroup(row pgx.Row) (*domain.Group, error) {
	var (
		group    domain.Group
		roles    []byte
		settings []byte
		usage    []byte
	)
	err := row.Scan(
		&group.ID, &group.Name, &group.Description, &group.Visibility,
		&group.CreatedBy, &group.CreatedAt,
		&roles, &group.Members, &group.MembersCount, &settings, &usage,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(roles, &group.Roles); err != nil {
		return nil, fmt.Errorf("decoding roles: %w", err)
	}
	if err := json.Unmarshal(settings, &group.Settings); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if err := json.Unmarshal(usage, &group.AIUsage); err != nil {
		return nil, fmt.Errorf("decoding ai usage: %w", err)
	}
	return &group, nil
}
