package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	var file []byte
	if msg.File != nil {
		var err error
		file, err = json.Marshal(msg.File)
		if err != nil {
			return fmt.Errorf("encoding attachment: %w", err)
		}
	}

	query := `
		INSERT INTO messages (id, conversation_id, sender_id, sender_name, sender_avatar,
			receiver_id, text, type, file, mentions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.SenderID, msg.SenderName, msg.SenderAvatar,
		msg.ReceiverID, msg.Text, msg.Type, file, msg.Mentions, msg.CreatedAt,
	)
	return err
}

func (r *MessageRepo) ListWindow(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, sender_name, sender_avatar,
			receiver_id, text, type, file, mentions, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var (
			msg  domain.Message
			file []byte
		)
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.SenderName, &msg.SenderAvatar,
			&msg.ReceiverID, &msg.Text, &msg.Type, &file, &msg.Mentions, &msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(file) > 0 {
			msg.File = &domain.FileAttachment{}
			if err := json.Unmarshal(file, msg.File); err != nil {
				return nil, fmt.Errorf("decoding attachment: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order (query returns DESC)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
