package validation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resale-hub/claim-engine/internal/domain/listing"
)

// BidInput is everything needed to decide a bid.
type BidInput struct {
	Listing *listing.Listing
	ActorID string
	Amount  float64
	// Current is the derived current bid: the highest active bid, floored at
	// the listing's starting price.
	Current decimal.Decimal
	Now     time.Time
}

// ValidateBid decides whether ActorID may bid Amount on Listing now.
// Accepting exactly Current + MinIncrement is allowed. Amounts finer than a
// cent are rejected so the stored bid is the one that was compared.
func ValidateBid(in BidInput) error {
	l := in.Listing
	if in.ActorID == "" {
		return Reject(ReasonNotAuthenticated, "sign in to bid on this listing")
	}
	if l != nil && in.ActorID == l.SellerID {
		return Reject(ReasonSelfAction, "you cannot bid on your own listing")
	}
	if l == nil || l.ListingID == uuid.Nil {
		return Reject(ReasonListingMissing, "listing not found")
	}
	if l.IsPastDeadline(in.Now) {
		return Reject(ReasonListingExpired, "bidding ended at %s", l.EndDeadline.Format(time.RFC3339))
	}
	if !l.IsOpen() {
		return Reject(ReasonListingClosed, "listing is %s", l.Status)
	}
	if l.PriceMode != listing.PriceModeBidding {
		return Reject(ReasonPriceModeMismatch, "listing does not accept bids")
	}
	if !validPrice(in.Amount) {
		return Reject(ReasonInvalidAmount, "bid must be a positive number")
	}
	amount := decimal.NewFromFloat(in.Amount)
	if !listing.IsCents(amount) {
		return Reject(ReasonInvalidAmount, "bid must be in whole cents")
	}
	if amount.LessThanOrEqual(in.Current) {
		return Reject(ReasonBidTooLow, "bid must be higher than %s", in.Current.StringFixed(2))
	}
	if floor := in.Current.Add(l.MinIncrement); amount.LessThan(floor) {
		return Reject(ReasonBelowMinIncrement, "bid must be at least %s", floor.StringFixed(2))
	}
	return nil
}
