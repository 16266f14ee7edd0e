package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/resale-hub/claim-engine/internal/domain/payment"
)

// PaymentRepository implements payment.Repository with the same uniqueness
// rules as the payment_records indexes.
type PaymentRepository struct {
	mu      sync.RWMutex
	seq     int64
	records map[uuid.UUID]*payment.Record
}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{records: make(map[uuid.UUID]*payment.Record)}
}

func (r *PaymentRepository) Create(ctx context.Context, rec *payment.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.ListingID != rec.ListingID {
			continue
		}
		if existing.BuyerID == rec.BuyerID {
			return payment.ErrDuplicate
		}
		if existing.IsPending() && rec.IsPending() {
			return payment.ErrPendingExists
		}
	}
	r.seq++
	rec.ID = r.seq
	r.records[rec.RecordID] = cloneRecord(rec)
	return nil
}

func (r *PaymentRepository) Update(ctx context.Context, rec *payment.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.RecordID]; !ok {
		return payment.ErrNoPendingPayment
	}
	if rec.IsPending() {
		for id, existing := range r.records {
			if id != rec.RecordID && existing.ListingID == rec.ListingID && existing.IsPending() {
				return payment.ErrPendingExists
			}
		}
	}
	r.records[rec.RecordID] = cloneRecord(rec)
	return nil
}

func (r *PaymentRepository) GetByListingAndBuyer(ctx context.Context, listingID uuid.UUID, buyerID string) (*payment.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.ListingID == listingID && rec.BuyerID == buyerID {
			return cloneRecord(rec), nil
		}
	}
	return nil, nil
}

func (r *PaymentRepository) GetPendingByListing(ctx context.Context, listingID uuid.UUID) (*payment.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.ListingID == listingID && rec.IsPending() {
			return cloneRecord(rec), nil
		}
	}
	return nil, nil
}

func (r *PaymentRepository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*payment.Record, error) {
	return r.filter(0, func(rec *payment.Record) bool { return rec.ListingID == listingID }), nil
}

func (r *PaymentRepository) ListPending(ctx context.Context, limit int) ([]*payment.Record, error) {
	return r.filter(limit, func(rec *payment.Record) bool { return rec.IsPending() }), nil
}

func (r *PaymentRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*payment.Record, error) {
	return r.filter(limit, func(rec *payment.Record) bool { return rec.IsDue(now) }), nil
}

func (r *PaymentRepository) filter(limit int, keep func(*payment.Record) bool) []*payment.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*payment.Record
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, 0)
}

func cloneRecord(rec *payment.Record) *payment.Record {
	c := *rec
	if rec.CancelReason != nil {
		reason := *rec.CancelReason
		c.CancelReason = &reason
	}
	return &c
}
