package listing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
)

// PriceMode selects how a listing is sold.
type PriceMode string

const (
	PriceModeMSL     PriceMode = "msl"
	PriceModeBidding PriceMode = "bidding"
)

// Status is the listing lifecycle state.
type Status string

const (
	StatusActive        Status = "active"
	StatusLocked        Status = "locked"
	StatusExpiredNoSale Status = "expired_no_sale"
	StatusSold          Status = "sold"
)

var (
	ErrInvalidTransition = errors.New("invalid listing status transition")
	ErrVersionConflict   = errors.New("listing was modified concurrently")
	ErrInvalidListing    = errors.New("invalid listing")
)

// Listing is an item offered for resale.
type Listing struct {
	ID              int64           `json:"id"`
	ListingID       uuid.UUID       `json:"listingId"`
	SellerID        string          `json:"sellerId"`
	Title           string          `json:"title"`
	PriceMode       PriceMode       `json:"priceMode"`
	MinePrice       decimal.Decimal `json:"minePrice"`
	StealPrice      decimal.Decimal `json:"stealPrice"`
	LockPrice       decimal.Decimal `json:"lockPrice"`
	StartingPrice   decimal.Decimal `json:"startingPrice"`
	MinIncrement    decimal.Decimal `json:"minIncrement"`
	CurrentBid      decimal.Decimal `json:"currentBid"`
	CurrentBidderID *string         `json:"currentBidderId,omitempty"`
	Status          Status          `json:"status"`
	EndDeadline     time.Time       `json:"endDeadline"`
	Version         int             `json:"version"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Validate checks the pricing fields required by the price mode. Prices are
// whole cents, matching what storage keeps.
func (l *Listing) Validate() error {
	if l.SellerID == "" || l.EndDeadline.IsZero() {
		return ErrInvalidListing
	}
	switch l.PriceMode {
	case PriceModeMSL:
		if !l.MinePrice.IsPositive() || !l.StealPrice.IsPositive() || !l.LockPrice.IsPositive() {
			return ErrInvalidListing
		}
		if !IsCents(l.MinePrice) || !IsCents(l.StealPrice) || !IsCents(l.LockPrice) {
			return ErrInvalidListing
		}
	case PriceModeBidding:
		if !l.StartingPrice.IsPositive() || l.MinIncrement.IsNegative() {
			return ErrInvalidListing
		}
		if !IsCents(l.StartingPrice) || !IsCents(l.MinIncrement) {
			return ErrInvalidListing
		}
	default:
		return ErrInvalidListing
	}
	return nil
}

// IsCents reports whether d has at most two decimal places.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// IsOpen reports whether the listing accepts new claims and bids.
func (l *Listing) IsOpen() bool {
	return l.Status == StatusActive
}

// IsPastDeadline reports whether now is after the end deadline.
func (l *Listing) IsPastDeadline(now time.Time) bool {
	return now.After(l.EndDeadline)
}

// PriceFor returns the fixed price of a claim action on an msl listing.
func (l *Listing) PriceFor(kind activity.Kind) decimal.Decimal {
	switch kind {
	case activity.KindMine:
		return l.MinePrice
	case activity.KindSteal:
		return l.StealPrice
	case activity.KindLock:
		return l.LockPrice
	}
	return decimal.Zero
}

// CanTransitionTo checks if a transition to the target status is valid.
func (l *Listing) CanTransitionTo(target Status) bool {
	if target == StatusSold {
		return l.Status != StatusSold
	}
	transitions := map[Status][]Status{
		StatusActive:        {StatusLocked, StatusExpiredNoSale},
		StatusLocked:        {StatusExpiredNoSale},
		StatusExpiredNoSale: {},
		StatusSold:          {},
	}
	for _, s := range transitions[l.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the listing to target.
func (l *Listing) TransitionTo(target Status, now time.Time) error {
	if !l.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	l.Status = target
	l.UpdatedAt = now.UTC()
	return nil
}

// RecordBid sets the leading bid.
func (l *Listing) RecordBid(userID string, amount decimal.Decimal, now time.Time) {
	l.CurrentBid = amount
	l.CurrentBidderID = &userID
	l.UpdatedAt = now.UTC()
}
