package bid

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status of a bid. Only active bids count toward the current bid.
type Status string

const (
	StatusActive Status = "active"
)

// Bid is an offer on a bidding listing.
type Bid struct {
	ID        int64           `json:"id"`
	BidID     uuid.UUID       `json:"bidId"`
	ListingID uuid.UUID       `json:"listingId"`
	UserID    string          `json:"userId"`
	UserName  string          `json:"userName"`
	Amount    decimal.Decimal `json:"amount"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"timestamp"`
}

// NewBid creates an active bid.
func NewBid(listingID uuid.UUID, userID, userName string, amount decimal.Decimal, now time.Time) *Bid {
	return &Bid{
		BidID:     uuid.New(),
		ListingID: listingID,
		UserID:    userID,
		UserName:  userName,
		Amount:    amount,
		Status:    StatusActive,
		CreatedAt: now.UTC(),
	}
}

// Current returns the highest active bid amount, floored at startingPrice.
func Current(bids []*Bid, startingPrice decimal.Decimal) decimal.Decimal {
	current := startingPrice
	for _, b := range bids {
		if b.Status == StatusActive && b.Amount.GreaterThan(current) {
			current = b.Amount
		}
	}
	return current
}

// Leader returns the active bid holding the current amount, earliest first.
func Leader(bids []*Bid) *Bid {
	var lead *Bid
	for _, b := range bids {
		if b.Status != StatusActive {
			continue
		}
		if lead == nil || b.Amount.GreaterThan(lead.Amount) ||
			(b.Amount.Equal(lead.Amount) && b.CreatedAt.Before(lead.CreatedAt)) {
			lead = b
		}
	}
	return lead
}
