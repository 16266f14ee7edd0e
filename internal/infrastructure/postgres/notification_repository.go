package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resale-hub/claim-engine/internal/domain/notification"
)

// NotificationRepository implements notification.Repository.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO notifications (notification_id, recipient_id, title, body, data, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, n.NotificationID, n.RecipientID, n.Title, n.Body, data, n.CreatedAt).Scan(&n.ID)
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*notification.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, notification_id, recipient_id, title, body, data, created_at
		FROM notifications WHERE recipient_id=$1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*notification.Notification
	for rows.Next() {
		var n notification.Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.NotificationID, &n.RecipientID, &n.Title, &n.Body, &data, &n.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

var _ notification.Repository = (*NotificationRepository)(nil)
