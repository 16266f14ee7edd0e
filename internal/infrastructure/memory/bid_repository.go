package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/resale-hub/claim-engine/internal/domain/bid"
)

// BidRepository implements bid.Repository.
type BidRepository struct {
	mu   sync.RWMutex
	bids []bid.Bid
}

func NewBidRepository() *BidRepository {
	return &BidRepository{}
}

func (r *BidRepository) Create(ctx context.Context, b *bid.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = int64(len(r.bids) + 1)
	r.bids = append(r.bids, *b)
	return nil
}

func (r *BidRepository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*bid.Bid
	for i := range r.bids {
		if r.bids[i].ListingID == listingID {
			b := r.bids[i]
			out = append(out, &b)
		}
	}
	return out, nil
}
