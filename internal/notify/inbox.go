package notify

import (
	"context"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
)

const (
	TypeNewOrder      = "new_order"
	TypeOrderShipped  = "order_shipped"
	TypeOrderReceived = "order_received"
)

type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Reference string         `json:"reference,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type Inbox interface {
	// Deliver is idempotent on Notification.ID.
	Deliver(ctx context.Context, n Notification) error
}

type InboxRepo struct{ DB postgres.DB }

func (r *InboxRepo) Deliver(ctx context.Context, n Notification) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO notifications(id, user_id, type, title, reference, metadata, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		n.ID, n.UserID, n.Type, n.Title, n.Reference, n.Metadata, n.CreatedAt)
	return err
}
