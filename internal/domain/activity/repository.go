package activity

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the append-only activity ledger.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	ListByListing(ctx context.Context, listingID uuid.UUID) ([]*Entry, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Entry, error)
}
