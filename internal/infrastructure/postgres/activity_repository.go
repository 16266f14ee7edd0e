package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
)

// ActivityRepository implements activity.Repository on the append-only
// activity_log table.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

func (r *ActivityRepository) Append(ctx context.Context, e *activity.Entry) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO activity_log (entry_id, listing_id, user_id, user_name, action_kind, amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, e.EntryID, e.ListingID, e.UserID, e.UserName, e.Kind, e.Amount, e.CreatedAt).Scan(&e.ID)
}

func (r *ActivityRepository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*activity.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, entry_id, listing_id, user_id, user_name, action_kind, amount, created_at
		FROM activity_log WHERE listing_id=$1 ORDER BY id ASC
	`, listingID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *ActivityRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*activity.Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, entry_id, listing_id, user_id, user_name, action_kind, amount, created_at
		FROM activity_log WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]*activity.Entry, error) {
	defer rows.Close()
	var out []*activity.Entry
	for rows.Next() {
		var e activity.Entry
		if err := rows.Scan(&e.ID, &e.EntryID, &e.ListingID, &e.UserID, &e.UserName, &e.Kind, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

var _ activity.Repository = (*ActivityRepository)(nil)
