package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, username, display_name, password_hash, photo_url, visible,
	connections, pending_incoming, pending_outgoing, groups_joined, created_at, last_seen`

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, username, display_name, password_hash, photo_url, visible,
			connections, pending_incoming, pending_outgoing, groups_joined, created_at, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			password_hash = EXCLUDED.password_hash,
			photo_url = EXCLUDED.photo_url,
			last_seen = EXCLUDED.last_seen`
	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Email, user.Username, user.DisplayName, user.PasswordHash, user.PhotoURL,
		user.Visible, user.Connections, user.PendingIncoming, user.PendingOutgoing,
		user.GroupsJoined, user.CreatedAt, user.LastSeen,
	)
	return err
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "email = $1", email)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getBy(ctx, "username = $1", username)
}

func (r *UserRepo) getBy(ctx context.Context, cond string, arg any) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s`, userColumns, cond)
	row := r.pool.QueryRow(ctx, query, arg)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepo) ListVisible(ctx context.Context, limit int) ([]domain.User, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM users
		WHERE visible = TRUE
		ORDER BY username ASC
		LIMIT $1`, userColumns)

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *UserRepo) UpdateVisibility(ctx context.Context, id uuid.UUID, visible bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET visible = $1 WHERE id = $2`, visible, id)
	return err
}

func (r *UserRepo) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_seen = $1 WHERE id = $2`, time.Now(), id)
	return err
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

// UpdatePair writes both users' edge sets in one transaction. Rows are locked
// in canonical ID order so two concurrent pair edits cannot deadlock.
func (r *UserRepo) UpdatePair(ctx context.Context, a, b *domain.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning pair update: %w", err)
	}
	defer tx.Rollback(ctx)

	first, second := a, b
	if first.ID.String() > second.ID.String() {
		first, second = second, first
	}

	lock := `SELECT id FROM users WHERE id = $1 FOR UPDATE`
	for _, u := range []*domain.User{first, second} {
		var id uuid.UUID
		if err := tx.QueryRow(ctx, lock, u.ID).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("locking user %s: not found", u.ID)
			}
			return fmt.Errorf("locking user %s: %w", u.ID, err)
		}
	}

	update := `
		UPDATE users
		SET connections = $1, pending_incoming = $2, pending_outgoing = $3
		WHERE id = $4`
	for _, u := range []*domain.User{first, second} {
		if _, err := tx.Exec(ctx, update,
			u.Connections, u.PendingIncoming, u.PendingOutgoing, u.ID,
		); err != nil {
			return fmt.Errorf("updating user %s: %w", u.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.DisplayName, &user.PasswordHash,
		&user.PhotoURL, &user.Visible,
		&user.Connections, &user.PendingIncoming, &user.PendingOutgoing, &user.GroupsJoined,
		&user.CreatedAt, &user.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
