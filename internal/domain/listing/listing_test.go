package listing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from   Status
		to     Status
		expect bool
	}{
		{StatusActive, StatusLocked, true},
		{StatusActive, StatusExpiredNoSale, true},
		{StatusActive, StatusSold, true},
		{StatusLocked, StatusActive, false},
		{StatusLocked, StatusExpiredNoSale, true},
		{StatusLocked, StatusSold, true},
		{StatusExpiredNoSale, StatusActive, false},
		{StatusExpiredNoSale, StatusLocked, false},
		{StatusSold, StatusSold, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			l := &Listing{Status: tt.from}
			assert.Equal(t, tt.expect, l.CanTransitionTo(tt.to))
		})
	}
}

func TestTransitionTo(t *testing.T) {
	l := &Listing{Status: StatusLocked}
	err := l.TransitionTo(StatusActive, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusLocked, l.Status)
}

func TestValidateAndPrices(t *testing.T) {
	l := &Listing{
		SellerID:    "S",
		PriceMode:   PriceModeMSL,
		MinePrice:   decimal.NewFromInt(100),
		StealPrice:  decimal.NewFromInt(150),
		LockPrice:   decimal.NewFromInt(200),
		EndDeadline: time.Now().Add(time.Hour),
	}
	assert.NoError(t, l.Validate())
	assert.True(t, l.PriceFor(activity.KindSteal).Equal(decimal.NewFromInt(150)))
	assert.True(t, l.PriceFor(activity.KindBid).IsZero())

	l.LockPrice = decimal.RequireFromString("199.995")
	assert.ErrorIs(t, l.Validate(), ErrInvalidListing, "sub-cent prices cannot be stored")

	l.LockPrice = decimal.Zero
	assert.ErrorIs(t, l.Validate(), ErrInvalidListing)

	b := &Listing{SellerID: "S", PriceMode: PriceModeBidding, StartingPrice: decimal.NewFromInt(10), EndDeadline: time.Now()}
	assert.NoError(t, b.Validate())
	b.MinIncrement = decimal.RequireFromString("0.001")
	assert.ErrorIs(t, b.Validate(), ErrInvalidListing)
}
