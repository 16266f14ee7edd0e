package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
)

// Status is the persisted payment record state. Values are part of the
// storage contract shared with the payment and approval flows.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusSubmitted      Status = "submitted"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
	StatusSold           Status = "sold"
)

// Cancel reasons.
const (
	ReasonTimeout    = "timeout"
	ReasonSuperseded = "superseded"
)

var (
	ErrInvalidTransition = errors.New("invalid payment status transition")
	ErrDuplicate         = errors.New("payment record already exists for buyer")
	ErrPendingExists     = errors.New("listing already has a pending payment")
	ErrNoPendingPayment  = errors.New("no pending payment for listing")
	ErrNotServedBuyer    = errors.New("buyer is not the currently served claimant")
)

// Record is a payment obligation of one buyer on one listing.
type Record struct {
	ID           int64           `json:"id"`
	RecordID     uuid.UUID       `json:"recordId"`
	ListingID    uuid.UUID       `json:"listingId"`
	BuyerID      string          `json:"buyerId"`
	SellerID     string          `json:"sellerId"`
	Kind         activity.Kind   `json:"actionKind"`
	Amount       decimal.Decimal `json:"amount"`
	Status       Status          `json:"status"`
	CancelReason *string         `json:"cancelReason,omitempty"`
	ExpiresAt    time.Time       `json:"expirationTime"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// NewPending creates a pending_payment record expiring after window.
func NewPending(listingID uuid.UUID, buyerID, sellerID string, kind activity.Kind, amount decimal.Decimal, now time.Time, window time.Duration) *Record {
	now = now.UTC()
	return &Record{
		RecordID:  uuid.New(),
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Kind:      kind,
		Amount:    amount,
		Status:    StatusPendingPayment,
		ExpiresAt: now.Add(window),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsPending reports whether the record is the listing's served claimant.
func (r *Record) IsPending() bool {
	return r.Status == StatusPendingPayment
}

// IsDue reports whether a pending record has reached its expiration.
func (r *Record) IsDue(now time.Time) bool {
	return r.IsPending() && !now.Before(r.ExpiresAt)
}

// CanTransitionTo checks if a transition to the target status is valid
func (r *Record) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPendingPayment: {StatusSubmitted, StatusCancelled},
		StatusSubmitted:      {StatusApproved, StatusRejected},
		StatusApproved:       {StatusSold},
		StatusRejected:       {},
		StatusCancelled:      {},
		StatusSold:           {},
	}
	for _, s := range transitions[r.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// Cancel marks a pending record cancelled with reason.
func (r *Record) Cancel(reason string, now time.Time) error {
	if !r.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}
	r.Status = StatusCancelled
	r.CancelReason = &reason
	r.UpdatedAt = now.UTC()
	return nil
}

// MarkSubmitted records that payment proof was uploaded.
func (r *Record) MarkSubmitted(now time.Time) error {
	if !r.CanTransitionTo(StatusSubmitted) {
		return ErrInvalidTransition
	}
	r.Status = StatusSubmitted
	r.UpdatedAt = now.UTC()
	return nil
}
