package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists payment records. Create returns ErrDuplicate when the
// (listing, buyer) pair already has a record and ErrPendingExists when the
// listing already has a pending_payment record.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	Update(ctx context.Context, r *Record) error
	GetByListingAndBuyer(ctx context.Context, listingID uuid.UUID, buyerID string) (*Record, error)
	GetPendingByListing(ctx context.Context, listingID uuid.UUID) (*Record, error)
	ListByListing(ctx context.Context, listingID uuid.UUID) ([]*Record, error)
	ListPending(ctx context.Context, limit int) ([]*Record, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Record, error)
}
