package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resale-hub/claim-engine/internal/domain/bid"
)

// BidRepository implements bid.Repository.
type BidRepository struct {
	pool *pgxpool.Pool
}

func NewBidRepository(pool *pgxpool.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

func (r *BidRepository) Create(ctx context.Context, b *bid.Bid) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO bids (bid_id, listing_id, user_id, user_name, amount, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, b.BidID, b.ListingID, b.UserID, b.UserName, b.Amount, b.Status, b.CreatedAt).Scan(&b.ID)
}

func (r *BidRepository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, bid_id, listing_id, user_id, user_name, amount, status, created_at
		FROM bids WHERE listing_id=$1 ORDER BY id ASC
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*bid.Bid
	for rows.Next() {
		var b bid.Bid
		if err := rows.Scan(&b.ID, &b.BidID, &b.ListingID, &b.UserID, &b.UserName, &b.Amount, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

var _ bid.Repository = (*BidRepository)(nil)
