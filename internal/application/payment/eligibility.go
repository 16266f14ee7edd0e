package payment

import (
	"errors"
	"strings"
	"time"

	"github.com/Knetic/govaluate"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
	"github.com/resale-hub/claim-engine/internal/domain/listing"
)

// EligibilityFilter decides whether a ledger entry may be offered a
// fallback payment window. The expression sees these parameters:
//
//	kind, claim_rank, serve_rank, amount, age_seconds,
//	mine_price, steal_price, lock_price, starting_price, current_bid
//
// e.g. `amount >= 0.5 * lock_price || kind == 'bid'`.
type EligibilityFilter struct {
	source string
	expr   *govaluate.EvaluableExpression
}

// NewEligibilityFilter compiles expression. An empty or "true" expression
// yields a nil filter, which admits everyone.
func NewEligibilityFilter(expression string) (*EligibilityFilter, error) {
	cond := strings.TrimSpace(expression)
	if cond == "" || strings.EqualFold(cond, "true") {
		return nil, nil
	}
	expr, err := govaluate.NewEvaluableExpression(cond)
	if err != nil {
		return nil, err
	}
	return &EligibilityFilter{source: cond, expr: expr}, nil
}

// String returns the source expression.
func (f *EligibilityFilter) String() string {
	if f == nil {
		return "true"
	}
	return f.source
}

// Eligible evaluates the filter for entry on l.
func (f *EligibilityFilter) Eligible(entry *activity.Entry, l *listing.Listing, now time.Time) (bool, error) {
	if f == nil {
		return true, nil
	}
	params := map[string]interface{}{
		"kind":           string(entry.Kind),
		"claim_rank":     float64(entry.Kind.ClaimRank()),
		"serve_rank":     float64(entry.Kind.ServeRank()),
		"amount":         entry.Amount.InexactFloat64(),
		"age_seconds":    now.Sub(entry.CreatedAt).Seconds(),
		"mine_price":     l.MinePrice.InexactFloat64(),
		"steal_price":    l.StealPrice.InexactFloat64(),
		"lock_price":     l.LockPrice.InexactFloat64(),
		"starting_price": l.StartingPrice.InexactFloat64(),
		"current_bid":    l.CurrentBid.InexactFloat64(),
	}
	result, err := f.expr.Evaluate(params)
	if err != nil {
		return false, err
	}
	v, ok := result.(bool)
	if !ok {
		return false, errors.New("eligibility condition did not evaluate to boolean")
	}
	return v, nil
}
