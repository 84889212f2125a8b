// Package notify publishes push-notification events for delivery workers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Channel carries new-message notification events to the delivery worker.
const Channel = "notifications:messages"

type Event struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	SentAt      time.Time `json:"sent_at"`
}

type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(addr string) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return &Publisher{rdb: rdb}
}

// PublishNewMessage queues one notification for a recipient.
func (p *Publisher) PublishNewMessage(ctx context.Context, recipientID uuid.UUID, title, body string) error {
	data, err := json.Marshal(Event{
		RecipientID: recipientID,
		Title:       title,
		Body:        body,
		SentAt:      time.Now(),
	})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	if err := p.rdb.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}
