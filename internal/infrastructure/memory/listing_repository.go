// Package memory holds process-local implementations of the domain
// repositories. They back STORAGE=memory and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/resale-hub/claim-engine/internal/domain/listing"
)

// ListingRepository implements listing.Repository.
type ListingRepository struct {
	mu       sync.RWMutex
	seq      int64
	listings map[uuid.UUID]*listing.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{listings: make(map[uuid.UUID]*listing.Listing)}
}

func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listings[l.ListingID]; ok {
		return errDuplicateKey
	}
	r.seq++
	l.ID = r.seq
	if l.Version == 0 {
		l.Version = 1
	}
	r.listings[l.ListingID] = cloneListing(l)
	return nil
}

func (r *ListingRepository) GetByID(ctx context.Context, listingID uuid.UUID) (*listing.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listings[listingID]
	if !ok {
		return nil, nil
	}
	return cloneListing(l), nil
}

func (r *ListingRepository) Update(ctx context.Context, l *listing.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.listings[l.ListingID]
	if !ok || cur.Version != l.Version {
		return listing.ErrVersionConflict
	}
	l.Version++
	r.listings[l.ListingID] = cloneListing(l)
	return nil
}

func (r *ListingRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*listing.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*listing.Listing
	for _, l := range r.listings {
		if l.Status == listing.StatusActive && l.EndDeadline.Before(now) {
			out = append(out, cloneListing(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDeadline.Before(out[j].EndDeadline) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneListing(l *listing.Listing) *listing.Listing {
	c := *l
	if l.CurrentBidderID != nil {
		id := *l.CurrentBidderID
		c.CurrentBidderID = &id
	}
	return &c
}
