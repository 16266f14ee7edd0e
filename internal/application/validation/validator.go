package validation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
	"github.com/resale-hub/claim-engine/internal/domain/listing"
)

// Reason is a rejection code returned to the caller.
type Reason string

const (
	ReasonNotAuthenticated   Reason = "NOT_AUTHENTICATED"
	ReasonSelfAction         Reason = "SELF_ACTION"
	ReasonListingMissing     Reason = "LISTING_MISSING"
	ReasonListingClosed      Reason = "LISTING_CLOSED"
	ReasonListingExpired     Reason = "LISTING_EXPIRED"
	ReasonPriceModeMismatch  Reason = "PRICE_MODE_MISMATCH"
	ReasonInvalidPrice       Reason = "INVALID_PRICE"
	ReasonDuplicateAction    Reason = "DUPLICATE_ACTION"
	ReasonHierarchyViolation Reason = "HIERARCHY_VIOLATION"
	ReasonInvalidKind        Reason = "INVALID_ACTION_KIND"

	ReasonInvalidAmount     Reason = "INVALID_AMOUNT"
	ReasonBidTooLow         Reason = "BID_TOO_LOW"
	ReasonBelowMinIncrement Reason = "BELOW_MIN_INCREMENT"
)

// ValidationError is a synchronous rejection. Nothing was written.
type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Reject builds a ValidationError.
func Reject(reason Reason, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Reason, true
	}
	return "", false
}

// Input is everything needed to decide a claim attempt. ProposedPrice must
// equal the listing's fixed price for Kind.
type Input struct {
	Listing       *listing.Listing
	ActorID       string
	Kind          activity.Kind
	ProposedPrice float64
	History       []*activity.Entry
	Now           time.Time
}

// Validate decides whether ActorID may perform Kind on Listing now. It
// returns nil when accepted and a *ValidationError otherwise. Checks run in
// a fixed order and the first failure wins.
func Validate(in Input) error {
	l := in.Listing
	if in.ActorID == "" {
		return Reject(ReasonNotAuthenticated, "sign in to claim this listing")
	}
	if l != nil && in.ActorID == l.SellerID {
		return Reject(ReasonSelfAction, "you cannot claim your own listing")
	}
	if l == nil || l.ListingID == uuid.Nil {
		return Reject(ReasonListingMissing, "listing not found")
	}
	if !in.Kind.IsClaim() {
		return Reject(ReasonInvalidKind, "unknown action %q", in.Kind)
	}
	if !l.IsOpen() {
		return Reject(ReasonListingClosed, "listing is %s", l.Status)
	}
	if l.IsPastDeadline(in.Now) {
		return Reject(ReasonListingExpired, "listing ended at %s", l.EndDeadline.Format(time.RFC3339))
	}
	if l.PriceMode != listing.PriceModeMSL {
		return Reject(ReasonPriceModeMismatch, "listing accepts bids only")
	}
	if !validPrice(in.ProposedPrice) {
		return Reject(ReasonInvalidPrice, "price must be a positive number")
	}
	if fixed := l.PriceFor(in.Kind); !decimal.NewFromFloat(in.ProposedPrice).Equal(fixed) {
		return Reject(ReasonInvalidPrice, "%s price is %s", in.Kind, fixed.StringFixed(2))
	}
	if activity.HasLogged(in.History, in.ActorID, in.Kind) {
		return Reject(ReasonDuplicateAction, "you already used %s on this listing", in.Kind)
	}
	if activity.StrongestClaim(in.History, in.ActorID) > in.Kind.ClaimRank() {
		return Reject(ReasonHierarchyViolation, "you cannot %s after a stronger claim", in.Kind)
	}
	return nil
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}
