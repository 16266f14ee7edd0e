package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
)

func TestNewPending(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewPending(uuid.New(), "B", "S", activity.KindLock, decimal.NewFromInt(200), now, 180*time.Second)

	assert.Equal(t, StatusPendingPayment, r.Status)
	assert.Equal(t, now.Add(3*time.Minute), r.ExpiresAt)
	assert.False(t, r.IsDue(now.Add(179*time.Second)))
	assert.True(t, r.IsDue(now.Add(180*time.Second)))
}

func TestRecordTransitions(t *testing.T) {
	now := time.Now()

	t.Run("cancel pending", func(t *testing.T) {
		r := &Record{Status: StatusPendingPayment}
		require.NoError(t, r.Cancel(ReasonTimeout, now))
		assert.Equal(t, StatusCancelled, r.Status)
		require.NotNil(t, r.CancelReason)
		assert.Equal(t, ReasonTimeout, *r.CancelReason)
		assert.False(t, r.IsDue(now.Add(time.Hour)))
	})

	t.Run("submitted cannot be cancelled", func(t *testing.T) {
		r := &Record{Status: StatusPendingPayment}
		require.NoError(t, r.MarkSubmitted(now))
		assert.ErrorIs(t, r.Cancel(ReasonTimeout, now), ErrInvalidTransition)
		assert.True(t, r.CanTransitionTo(StatusApproved))
	})

	t.Run("cancelled is terminal", func(t *testing.T) {
		r := &Record{Status: StatusCancelled}
		assert.ErrorIs(t, r.MarkSubmitted(now), ErrInvalidTransition)
	})
}
