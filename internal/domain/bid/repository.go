package bid

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists bids.
type Repository interface {
	Create(ctx context.Context, b *Bid) error
	ListByListing(ctx context.Context, listingID uuid.UUID) ([]*Bid, error)
}
