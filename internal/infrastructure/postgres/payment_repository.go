package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resale-hub/claim-engine/internal/domain/payment"
)

const paymentColumns = `id, record_id, listing_id, buyer_id, seller_id, action_kind, amount, status, cancel_reason, expires_at, created_at, updated_at`

// PaymentRepository implements payment.Repository. The uq_payment_*
// indexes back ErrDuplicate and ErrPendingExists.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Create(ctx context.Context, rec *payment.Record) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payment_records (record_id, listing_id, buyer_id, seller_id, action_kind, amount, status, cancel_reason, expires_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING id
	`, rec.RecordID, rec.ListingID, rec.BuyerID, rec.SellerID, rec.Kind, rec.Amount, rec.Status, rec.CancelReason,
		rec.ExpiresAt, rec.CreatedAt, rec.UpdatedAt).Scan(&rec.ID)
	return mapPaymentError(err)
}

func (r *PaymentRepository) Update(ctx context.Context, rec *payment.Record) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_records SET status=$1, cancel_reason=$2, expires_at=$3, updated_at=$4
		WHERE record_id=$5
	`, rec.Status, rec.CancelReason, rec.ExpiresAt, rec.UpdatedAt, rec.RecordID)
	if err != nil {
		return mapPaymentError(err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrNoPendingPayment
	}
	return nil
}

func (r *PaymentRepository) GetByListingAndBuyer(ctx context.Context, listingID uuid.UUID, buyerID string) (*payment.Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_records WHERE listing_id=$1 AND buyer_id=$2`, listingID, buyerID)
	return scanPayment(row)
}

func (r *PaymentRepository) GetPendingByListing(ctx context.Context, listingID uuid.UUID) (*payment.Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payment_records WHERE listing_id=$1 AND status='pending_payment'`, listingID)
	return scanPayment(row)
}

func (r *PaymentRepository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*payment.Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payment_records WHERE listing_id=$1 ORDER BY id ASC`, listingID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

// ListPending returns every pending record when limit is 0.
func (r *PaymentRepository) ListPending(ctx context.Context, limit int) ([]*payment.Record, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE status='pending_payment' ORDER BY expires_at ASC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (r *PaymentRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*payment.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payment_records
		WHERE status='pending_payment' AND expires_at <= $1
		ORDER BY expires_at ASC LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]*payment.Record, error) {
	defer rows.Close()
	var out []*payment.Record
	for rows.Next() {
		rec, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (*payment.Record, error) {
	var rec payment.Record
	if err := row.Scan(&rec.ID, &rec.RecordID, &rec.ListingID, &rec.BuyerID, &rec.SellerID, &rec.Kind, &rec.Amount,
		&rec.Status, &rec.CancelReason, &rec.ExpiresAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func mapPaymentError(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case "uq_payment_listing_buyer":
		return payment.ErrDuplicate
	case "uq_payment_one_pending":
		return payment.ErrPendingExists
	}
	return err
}

var _ payment.Repository = (*PaymentRepository)(nil)
