package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
)

var errDuplicateKey = errors.New("duplicate key value violates unique constraint")

// ActivityRepository implements activity.Repository as an append-only slice.
type ActivityRepository struct {
	mu      sync.RWMutex
	entries []activity.Entry
}

func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{}
}

func (r *ActivityRepository) Append(ctx context.Context, entry *activity.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *ActivityRepository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*activity.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*activity.Entry
	for i := range r.entries {
		if r.entries[i].ListingID == listingID {
			e := r.entries[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *ActivityRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*activity.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*activity.Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID == userID {
			e := r.entries[i]
			out = append(out, &e)
		}
	}
	return page(out, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
