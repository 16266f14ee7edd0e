package payment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appPayment "github.com/resale-hub/claim-engine/internal/application/payment"
	"github.com/resale-hub/claim-engine/internal/application/payment/paymenttest"
	"github.com/resale-hub/claim-engine/internal/domain/activity"
	"github.com/resale-hub/claim-engine/internal/domain/event"
	"github.com/resale-hub/claim-engine/internal/domain/listing"
	"github.com/resale-hub/claim-engine/internal/domain/notification"
	"github.com/resale-hub/claim-engine/internal/domain/payment"
	"github.com/resale-hub/claim-engine/internal/infrastructure/lock"
	"github.com/resale-hub/claim-engine/internal/infrastructure/memory"
)

var start = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingSink struct {
	mu   sync.Mutex
	sent []*notification.Notification
}

func (s *recordingSink) Notify(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSink) kinds(recipient string) []notification.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.Kind
	for _, n := range s.sent {
		if n.RecipientID == recipient {
			out = append(out, n.Data.Kind)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e *event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []event.Type
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	clock     *paymenttest.FakeClock
	listings  *memory.ListingRepository
	ledger    *memory.ActivityRepository
	payments  *memory.PaymentRepository
	sink      *recordingSink
	publisher *recordingPublisher
	mgr       *appPayment.Manager
	listing   *listing.Listing
}

func newHarness(t *testing.T, filter string) *harness {
	t.Helper()
	h := &harness{
		clock:     paymenttest.NewFakeClock(start),
		listings:  memory.NewListingRepository(),
		ledger:    memory.NewActivityRepository(),
		payments:  memory.NewPaymentRepository(),
		sink:      &recordingSink{},
		publisher: &recordingPublisher{},
	}
	f, err := appPayment.NewEligibilityFilter(filter)
	require.NoError(t, err)
	h.mgr = appPayment.NewManager(h.payments, h.listings, h.ledger, h.sink, h.publisher, lock.NewKeyed(),
		appPayment.Options{Clock: h.clock, Filter: f}, zerolog.Nop())

	h.listing = &listing.Listing{
		ListingID:   uuid.New(),
		SellerID:    "S",
		PriceMode:   listing.PriceModeMSL,
		MinePrice:   decimal.NewFromInt(100),
		StealPrice:  decimal.NewFromInt(150),
		LockPrice:   decimal.NewFromInt(200),
		Status:      listing.StatusLocked,
		EndDeadline: start.Add(24 * time.Hour),
		CreatedAt:   start,
		UpdatedAt:   start,
	}
	require.NoError(t, h.listings.Create(context.Background(), h.listing))
	return h
}

func (h *harness) log(t *testing.T, user string, kind activity.Kind, amount int64) {
	t.Helper()
	e := activity.NewEntry(h.listing.ListingID, user, user, kind, decimal.NewFromInt(amount), h.clock.Now())
	require.NoError(t, h.ledger.Append(context.Background(), e))
	h.clock.Advance(time.Second)
}

func (h *harness) pending(t *testing.T) *payment.Record {
	t.Helper()
	rec, err := h.payments.GetPendingByListing(context.Background(), h.listing.ListingID)
	require.NoError(t, err)
	return rec
}

func (h *harness) record(t *testing.T, buyer string) *payment.Record {
	t.Helper()
	rec, err := h.payments.GetByListingAndBuyer(context.Background(), h.listing.ListingID, buyer)
	require.NoError(t, err)
	require.NotNil(t, rec, "no record for %s", buyer)
	return rec
}

func (h *harness) status(t *testing.T) listing.Status {
	t.Helper()
	l, err := h.listings.GetByID(context.Background(), h.listing.ListingID)
	require.NoError(t, err)
	return l.Status
}

func TestStartOrRefresh_Idempotent(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	h.log(t, "B", activity.KindLock, 200)

	first, err := h.mgr.StartOrRefresh(ctx, h.listing.ListingID, "B", activity.KindLock, decimal.NewFromInt(200))
	require.NoError(t, err)
	second, err := h.mgr.StartOrRefresh(ctx, h.listing.ListingID, "B", activity.KindLock, decimal.NewFromInt(200))
	require.NoError(t, err)

	assert.Equal(t, first.RecordID, second.RecordID)
	recs, err := h.payments.ListByListing(ctx, h.listing.ListingID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, payment.StatusPendingPayment, first.Status)
	assert.Equal(t, "S", first.SellerID)
	assert.Equal(t, start.Add(time.Second+appPayment.DefaultWindow), first.ExpiresAt)
	assert.True(t, h.mgr.Armed(h.listing.ListingID))
	assert.Equal(t, 1, h.clock.Pending(), "refresh must replace the timer, not add one")
	assert.Equal(t, []notification.Kind{notification.KindPaymentWindow}, h.sink.kinds("B"))
}

func TestStartOrRefresh_SupersedesOtherBuyer(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	_, err := h.mgr.StartOrRefresh(ctx, h.listing.ListingID, "B", activity.KindLock, decimal.NewFromInt(200))
	require.NoError(t, err)
	_, err = h.mgr.StartOrRefresh(ctx, h.listing.ListingID, "A", activity.KindSteal, decimal.NewFromInt(150))
	require.NoError(t, err)

	b := h.record(t, "B")
	assert.Equal(t, payment.StatusCancelled, b.Status)
	require.NotNil(t, b.CancelReason)
	assert.Equal(t, payment.ReasonSuperseded, *b.CancelReason)

	p := h.pending(t)
	require.NotNil(t, p)
	assert.Equal(t, "A", p.BuyerID)
	assert.Equal(t, 1, h.clock.Pending())
}

func TestOnExpiry_PriorityOrdering(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	h.log(t, "A", activity.KindBid, 100)
	h.log(t, "B", activity.KindMine, 150)
	h.log(t, "C", activity.KindSteal, 200)

	_, err := h.mgr.StartOrRefresh(ctx, h.listing.ListingID, "C", activity.KindSteal, decimal.NewFromInt(200))
	require.NoError(t, err)

	h.clock.Advance(appPayment.DefaultWindow)
	c := h.record(t, "C")
	assert.Equal(t, payment.StatusCancelled, c.Status)
	require.NotNil(t, c.CancelReason)
	assert.Equal(t, payment.ReasonTimeout, *c.CancelReason)
	p := h.pending(t)
	require.NotNil(t, p)
	assert.Equal(t, "B", p.BuyerID)
	assert.Equal(t, activity.KindMine, p.Kind)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, h.clock.Now().Add(appPayment.DefaultWindow), p.ExpiresAt)
	assert.Contains(t, h.sink.kinds("B"), notification.KindYoureNext)

	h.clock.Advance(appPayment.DefaultWindow)
	p = h.pending(t)
	require.NotNil(t, p)
	assert.Equal(t, "A", p.BuyerID)
	assert.Equal(t, activity.KindBid, p.Kind)
	assert.Equal(t, listing.StatusLocked, h.status(t))

	h.clock.Advance(appPayment.DefaultWindow)
	assert.Nil(t, h.pending(t))
	assert.Equal(t, listing.StatusExpiredNoSale, h.status(t))
	assert.False(t, h.mgr.Armed(h.listing.ListingID))
	assert.Equal(t, 0, h.clock.Pending())
	assert.Equal(t, []notification.Kind{notification.KindNoBuyers}, h.sink.kinds("S"))

	recs, err := h.payments.ListByListing(ctx, h.listing.ListingID)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, []event.Type{
		event.TypePaymentWindowOpened,
		event.TypePaymentReassigned,
		event.TypePaymentReassigned,
		event.TypeListingExpired,
	}, h.publisher.types())

	h.clock.Advance(time.Hour)
	assert.Equal(t, listing.StatusExpiredNoSale, h.status(t))
}

func TestOnExpiry_SkipsUsersWithRecord(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	h.log(t, "A", activity.KindMine, 100)
	h.log(t, "A", activity.KindSteal, 150)
	h.log(t, "B", activity.KindLock, 200)

	_, err := h.mgr.StartOrRefresh(ctx, h.listing.ListingID, "B", activity.KindLock, decimal.NewFromInt(200))
	require.NoError(t, err)

	h.clock.Advance(appPayment.DefaultWindow)
	p := h.pending(t)
	require.NotNil(t, p)
	assert.Equal(t, "A", p.BuyerID)
	assert.Equal(t, activity.KindSteal, p.Kind, "the user's strongest entry is served")

	h.clock.Advance(appPayment.DefaultWindow)
	assert.Nil(t, h.pending(t))
	assert.Equal(t, listing.StatusExpiredNoSale, h.status(t))
}

func TestOnPaymentSubmitted_StopsTimer(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	h.log(t, "A", activity.KindMine, 100)
	h.log(t, "B", activity.KindLock, 200)

	_, err := h.mgr.StartOrRefresh(ctx, h.listing.ListingID, "B", activity.KindLock, decimal.NewFromInt(200))
	require.NoError(t, err)
	h.clock.Advance(time.Minute)

	require.NoError(t, h.mgr.OnPaymentSubmitted(ctx, h.listing.ListingID))
	assert.False(t, h.mgr.Armed(h.listing.ListingID))

	h.clock.Advance(10 * time.Minute)
	assert.Equal(t, payment.StatusSubmitted, h.record(t, "B").Status)
	assert.Nil(t, h.pending(t))
	recs, err := h.payments.ListByListing(ctx, h.listing.ListingID)
	require.NoError(t, err)
	assert.Len(t, recs, 1, "no reassignment after submission")

	assert.ErrorIs(t, h.mgr.OnPaymentSubmitted(ctx, h.listing.ListingID), payment.ErrNoPendingPayment)
}

func TestSubmitPayment_WrongBuyer(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	_, err := h.mgr.StartOrRefresh(ctx, h.listing.ListingID, "B", activity.KindLock, decimal.NewFromInt(200))
	require.NoError(t, err)

	_, err = h.mgr.SubmitPayment(ctx, h.listing.ListingID, "A")
	assert.ErrorIs(t, err, payment.ErrNotServedBuyer)
	assert.True(t, h.mgr.Armed(h.listing.ListingID))

	rec, err := h.mgr.SubmitPayment(ctx, h.listing.ListingID, "B")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSubmitted, rec.Status)
}

func TestOnExpiry_EarlyFireIsIgnored(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	_, err := h.mgr.StartOrRefresh(ctx, h.listing.ListingID, "B", activity.KindLock, decimal.NewFromInt(200))
	require.NoError(t, err)

	require.NoError(t, h.mgr.OnExpiry(ctx, h.listing.ListingID))
	p := h.pending(t)
	require.NotNil(t, p)
	assert.Equal(t, "B", p.BuyerID)
	assert.True(t, h.mgr.Armed(h.listing.ListingID))
	assert.Equal(t, 1, h.clock.Pending())
}

func TestRecover(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	h.log(t, "A", activity.KindMine, 100)
	h.log(t, "B", activity.KindLock, 200)

	overdue := payment.NewPending(h.listing.ListingID, "B", "S", activity.KindLock, decimal.NewFromInt(200), h.clock.Now().Add(-time.Hour), appPayment.DefaultWindow)
	require.NoError(t, h.payments.Create(ctx, overdue))

	other := &listing.Listing{ListingID: uuid.New(), SellerID: "S2", PriceMode: listing.PriceModeMSL, Status: listing.StatusLocked, EndDeadline: start.Add(time.Hour)}
	require.NoError(t, h.listings.Create(ctx, other))
	fresh := payment.NewPending(other.ListingID, "D", "S2", activity.KindLock, decimal.NewFromInt(50), h.clock.Now(), appPayment.DefaultWindow)
	require.NoError(t, h.payments.Create(ctx, fresh))

	n, err := h.mgr.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, payment.StatusCancelled, h.record(t, "B").Status)
	p := h.pending(t)
	require.NotNil(t, p)
	assert.Equal(t, "A", p.BuyerID)
	assert.True(t, h.mgr.Armed(other.ListingID))

	h.clock.Advance(appPayment.DefaultWindow)
	rec, err := h.payments.GetByListingAndBuyer(ctx, other.ListingID, "D")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, rec.Status)
}

func TestProcessExpired(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	h.log(t, "B", activity.KindLock, 200)

	lost := payment.NewPending(h.listing.ListingID, "B", "S", activity.KindLock, decimal.NewFromInt(200), h.clock.Now().Add(-10*time.Minute), appPayment.DefaultWindow)
	require.NoError(t, h.payments.Create(ctx, lost))
	assert.False(t, h.mgr.Armed(h.listing.ListingID))

	n, err := h.mgr.ProcessExpired(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, listing.StatusExpiredNoSale, h.status(t))

	n, err = h.mgr.ProcessExpired(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEligibilityFilterExcludesBids(t *testing.T) {
	h := newHarness(t, "kind != 'bid'")
	ctx := context.Background()
	h.log(t, "A", activity.KindBid, 500)
	h.log(t, "B", activity.KindLock, 200)

	_, err := h.mgr.StartOrRefresh(ctx, h.listing.ListingID, "B", activity.KindLock, decimal.NewFromInt(200))
	require.NoError(t, err)
	h.clock.Advance(appPayment.DefaultWindow)

	assert.Nil(t, h.pending(t))
	assert.Equal(t, listing.StatusExpiredNoSale, h.status(t))
}

func TestAtMostOnePendingPerListing(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	users := []string{"A", "B", "C", "D", "E", "F"}
	for _, u := range users {
		h.log(t, u, activity.KindMine, 100)
	}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			_, _ = h.mgr.StartOrRefresh(ctx, h.listing.ListingID, u, activity.KindMine, decimal.NewFromInt(100))
		}(u)
	}
	wg.Wait()

	recs, err := h.payments.ListByListing(ctx, h.listing.ListingID)
	require.NoError(t, err)
	pending := 0
	for _, r := range recs {
		if r.IsPending() {
			pending++
		}
	}
	assert.Equal(t, 1, pending)
	assert.Equal(t, 1, h.clock.Pending())
}
