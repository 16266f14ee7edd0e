package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resale-hub/claim-engine/internal/domain/listing"
)

const listingColumns = `id, listing_id, seller_id, title, price_mode, mine_price, steal_price, lock_price,
	starting_price, min_increment, current_bid, current_bidder_id, status, end_deadline, version, created_at, updated_at`

// ListingRepository implements listing.Repository.
type ListingRepository struct {
	pool *pgxpool.Pool
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	if l.Version == 0 {
		l.Version = 1
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO listings
		(listing_id, seller_id, title, price_mode, mine_price, steal_price, lock_price, starting_price, min_increment, current_bid, current_bidder_id, status, end_deadline, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING id
	`, l.ListingID, l.SellerID, l.Title, l.PriceMode, l.MinePrice, l.StealPrice, l.LockPrice, l.StartingPrice, l.MinIncrement,
		l.CurrentBid, l.CurrentBidderID, l.Status, l.EndDeadline, l.Version, l.CreatedAt, l.UpdatedAt).Scan(&l.ID)
}

func (r *ListingRepository) GetByID(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE listing_id=$1`, listingID)
	return scanListing(row)
}

// Update writes l only if the stored version still matches and bumps
// l.Version on success.
func (r *ListingRepository) Update(ctx context.Context, l *listing.Listing) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE listings
		SET title=$1, current_bid=$2, current_bidder_id=$3, status=$4, end_deadline=$5, updated_at=$6, version=version+1
		WHERE listing_id=$7 AND version=$8
	`, l.Title, l.CurrentBid, l.CurrentBidderID, l.Status, l.EndDeadline, l.UpdatedAt, l.ListingID, l.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return listing.ErrVersionConflict
	}
	l.Version++
	return nil
}

func (r *ListingRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*listing.Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE status='active' AND end_deadline < $1
		ORDER BY end_deadline ASC LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*listing.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanListing(row pgx.Row) (*listing.Listing, error) {
	var l listing.Listing
	if err := row.Scan(&l.ID, &l.ListingID, &l.SellerID, &l.Title, &l.PriceMode, &l.MinePrice, &l.StealPrice, &l.LockPrice,
		&l.StartingPrice, &l.MinIncrement, &l.CurrentBid, &l.CurrentBidderID, &l.Status, &l.EndDeadline, &l.Version,
		&l.CreatedAt, &l.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

var _ listing.Repository = (*ListingRepository)(nil)
