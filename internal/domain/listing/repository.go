package listing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists listings. Update compares Version and returns
// ErrVersionConflict when the stored row has moved on; on success the
// listing's Version is incremented in place.
type Repository interface {
	Create(ctx context.Context, l *Listing) error
	GetByID(ctx context.Context, listingID uuid.UUID) (*Listing, error)
	Update(ctx context.Context, l *Listing) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Listing, error)
}
