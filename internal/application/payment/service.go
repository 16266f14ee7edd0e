package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
	"github.com/resale-hub/claim-engine/internal/domain/event"
	"github.com/resale-hub/claim-engine/internal/domain/listing"
	domainLock "github.com/resale-hub/claim-engine/internal/domain/lock"
	"github.com/resale-hub/claim-engine/internal/domain/notification"
	"github.com/resale-hub/claim-engine/internal/domain/payment"
)

// DefaultWindow is how long the served claimant has to submit payment.
const DefaultWindow = 180 * time.Second

// Options tunes a Manager. Zero values fall back to defaults.
type Options struct {
	Window  time.Duration
	LockTTL time.Duration
	Clock   Clock
	Filter  *EligibilityFilter
}

type armedTimer struct {
	timer Timer
	gen   uint64
}

// Manager owns the payment window of every listing: it creates the pending
// record for the served claimant, keeps one timer per listing, and on expiry
// hands the obligation to the next claimant in serve order.
type Manager struct {
	payments  payment.Repository
	listings  listing.Repository
	ledger    activity.Repository
	notifier  notification.Sink
	publisher event.Publisher
	locker    domainLock.Locker
	clock     Clock
	window    time.Duration
	lockTTL   time.Duration
	filter    *EligibilityFilter
	logger    zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	timers map[uuid.UUID]armedTimer
}

// NewManager creates a payment window manager.
func NewManager(
	payments payment.Repository,
	listings listing.Repository,
	ledger activity.Repository,
	notifier notification.Sink,
	publisher event.Publisher,
	locker domainLock.Locker,
	opts Options,
	logger zerolog.Logger,
) *Manager {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	return &Manager{
		payments:  payments,
		listings:  listings,
		ledger:    ledger,
		notifier:  notifier,
		publisher: publisher,
		locker:    locker,
		clock:     opts.Clock,
		window:    opts.Window,
		lockTTL:   opts.LockTTL,
		filter:    opts.Filter,
		logger:    logger.With().Str("service", "payment_window").Logger(),
		timers:    make(map[uuid.UUID]armedTimer),
	}
}

// Window returns the configured payment window.
func (m *Manager) Window() time.Duration {
	return m.window
}

// StartOrRefresh makes buyerID the served claimant of the listing. An
// existing record for the pair is reused; a pending record held by another
// buyer is cancelled as superseded first.
func (m *Manager) StartOrRefresh(ctx context.Context, listingID uuid.UUID, buyerID string, kind activity.Kind, amount decimal.Decimal) (*payment.Record, error) {
	unlock, err := m.locker.Acquire(ctx, domainLock.ListingKey(listingID.String()), m.lockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := m.payments.GetByListingAndBuyer(ctx, listingID, buyerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.IsPending() {
			m.arm(listingID, existing.ExpiresAt)
		}
		return existing, nil
	}

	l, err := m.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("listing not found: %s", listingID)
	}

	now := m.clock.Now()
	current, err := m.payments.GetPendingByListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		if err := current.Cancel(payment.ReasonSuperseded, now); err != nil {
			return nil, err
		}
		if err := m.payments.Update(ctx, current); err != nil {
			return nil, err
		}
		m.logger.Info().
			Str("listing_id", listingID.String()).
			Str("buyer_id", current.BuyerID).
			Msg("pending payment superseded")
	}

	rec, err := m.openWindow(ctx, l, buyerID, kind, amount, now)
	if err != nil {
		if errors.Is(err, payment.ErrDuplicate) {
			return m.payments.GetByListingAndBuyer(ctx, listingID, buyerID)
		}
		return nil, err
	}
	m.notify(ctx, buyerID, "Payment window opened",
		fmt.Sprintf("Submit payment of %s within %s to secure the item.", amount.StringFixed(2), m.window),
		l.ListingID, kind, amount, notification.KindPaymentWindow)
	m.publish(ctx, event.TypePaymentWindowOpened, listingID, buyerID, rec)
	return rec, nil
}

// OnPaymentSubmitted disarms the listing's timer and moves its pending
// record to submitted.
func (m *Manager) OnPaymentSubmitted(ctx context.Context, listingID uuid.UUID) error {
	_, err := m.submit(ctx, listingID, "")
	return err
}

// SubmitPayment is OnPaymentSubmitted for a specific buyer; it fails with
// payment.ErrNotServedBuyer when buyerID is not the served claimant.
func (m *Manager) SubmitPayment(ctx context.Context, listingID uuid.UUID, buyerID string) (*payment.Record, error) {
	if buyerID == "" {
		return nil, payment.ErrNotServedBuyer
	}
	return m.submit(ctx, listingID, buyerID)
}

func (m *Manager) submit(ctx context.Context, listingID uuid.UUID, buyerID string) (*payment.Record, error) {
	unlock, err := m.locker.Acquire(ctx, domainLock.ListingKey(listingID.String()), m.lockTTL)
	if err != nil {
		return nil, err
	}
	defer unlock()

	pending, err := m.payments.GetPendingByListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		m.disarm(listingID)
		return nil, payment.ErrNoPendingPayment
	}
	if buyerID != "" && pending.BuyerID != buyerID {
		return nil, payment.ErrNotServedBuyer
	}
	m.disarm(listingID)
	if err := pending.MarkSubmitted(m.clock.Now()); err != nil {
		return nil, err
	}
	if err := m.payments.Update(ctx, pending); err != nil {
		return nil, err
	}
	m.publish(ctx, event.TypePaymentSubmitted, listingID, pending.BuyerID, pending)
	return pending, nil
}

// OnExpiry handles a fired timer. It re-reads the pending record under the
// listing lock, so stale or duplicate firings are harmless.
func (m *Manager) OnExpiry(ctx context.Context, listingID uuid.UUID) error {
	unlock, err := m.locker.Acquire(ctx, domainLock.ListingKey(listingID.String()), m.lockTTL)
	if err != nil {
		return err
	}
	defer unlock()

	pending, err := m.payments.GetPendingByListing(ctx, listingID)
	if err != nil {
		return err
	}
	if pending == nil {
		m.disarm(listingID)
		return nil
	}
	now := m.clock.Now()
	if !pending.IsDue(now) {
		m.arm(listingID, pending.ExpiresAt)
		return nil
	}

	if err := pending.Cancel(payment.ReasonTimeout, now); err != nil {
		return err
	}
	if err := m.payments.Update(ctx, pending); err != nil {
		return err
	}
	m.disarm(listingID)
	m.logger.Info().
		Str("listing_id", listingID.String()).
		Str("buyer_id", pending.BuyerID).
		Msg("payment window expired")

	l, err := m.listings.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if l == nil || l.Status == listing.StatusSold || l.Status == listing.StatusExpiredNoSale {
		return nil
	}

	next, err := m.NextClaimant(ctx, l)
	if err != nil {
		return err
	}
	if next == nil {
		return m.closeNoBuyers(ctx, l, now)
	}

	rec, err := m.openWindow(ctx, l, next.UserID, next.Kind, next.Amount, now)
	if err != nil {
		return err
	}
	m.notify(ctx, next.UserID, "You're next",
		fmt.Sprintf("The previous buyer did not pay in time. Submit payment of %s within %s.", next.Amount.StringFixed(2), m.window),
		l.ListingID, next.Kind, next.Amount, notification.KindYoureNext)
	m.publish(ctx, event.TypePaymentReassigned, listingID, "system", map[string]interface{}{
		"fromBuyerId": pending.BuyerID,
		"toBuyerId":   rec.BuyerID,
		"recordId":    rec.RecordID,
		"actionKind":  rec.Kind,
		"amount":      rec.Amount,
		"expiresAt":   rec.ExpiresAt,
	})
	return nil
}

// NextClaimant returns the first ledger entry in serve order whose user has
// never held a payment record on l and passes the eligibility filter.
// Callers must hold the listing lock.
func (m *Manager) NextClaimant(ctx context.Context, l *listing.Listing) (*activity.Entry, error) {
	entries, err := m.ledger.ListByListing(ctx, l.ListingID)
	if err != nil {
		return nil, err
	}
	records, err := m.payments.ListByListing(ctx, l.ListingID)
	if err != nil {
		return nil, err
	}
	served := make(map[string]struct{}, len(records))
	for _, r := range records {
		served[r.BuyerID] = struct{}{}
	}
	now := m.clock.Now()
	for _, e := range activity.SortForService(entries) {
		if e.UserID == l.SellerID {
			continue
		}
		if _, ok := served[e.UserID]; ok {
			continue
		}
		ok, err := m.filter.Eligible(e, l, now)
		if err != nil {
			m.logger.Warn().Err(err).
				Str("listing_id", l.ListingID.String()).
				Str("condition", m.filter.String()).
				Msg("eligibility condition failed, admitting claimant")
			ok = true
		}
		if ok {
			return e, nil
		}
	}
	return nil, nil
}

// Recover re-arms timers for every pending record after a restart and
// immediately evaluates the ones already past their deadline.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	recs, err := m.payments.ListPending(ctx, 0)
	if err != nil {
		return 0, err
	}
	now := m.clock.Now()
	recovered := 0
	for _, r := range recs {
		if r.IsDue(now) {
			if err := m.OnExpiry(ctx, r.ListingID); err != nil {
				m.logger.Warn().Err(err).Str("listing_id", r.ListingID.String()).Msg("failed to expire recovered window")
				continue
			}
		} else {
			m.arm(r.ListingID, r.ExpiresAt)
		}
		recovered++
	}
	if recovered > 0 {
		m.logger.Info().Int("count", recovered).Msg("payment windows recovered")
	}
	return recovered, nil
}

// ProcessExpired expires pending records whose timer was lost.
func (m *Manager) ProcessExpired(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	recs, err := m.payments.ListExpiredPending(ctx, m.clock.Now(), limit)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, r := range recs {
		if err := m.OnExpiry(ctx, r.ListingID); err != nil {
			m.logger.Warn().Err(err).
				Str("listing_id", r.ListingID.String()).
				Msg("failed to process expired payment window")
			continue
		}
		processed++
	}
	return processed, nil
}

// Armed reports whether a timer is armed for the listing.
func (m *Manager) Armed(listingID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[listingID]
	return ok
}

// Stop disarms every timer.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.timers {
		a.timer.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) openWindow(ctx context.Context, l *listing.Listing, buyerID string, kind activity.Kind, amount decimal.Decimal, now time.Time) (*payment.Record, error) {
	rec := payment.NewPending(l.ListingID, buyerID, l.SellerID, kind, amount, now, m.window)
	if err := m.payments.Create(ctx, rec); err != nil {
		return nil, err
	}
	m.arm(l.ListingID, rec.ExpiresAt)
	m.logger.Info().
		Str("listing_id", l.ListingID.String()).
		Str("buyer_id", buyerID).
		Time("expires_at", rec.ExpiresAt).
		Msg("payment window opened")
	return rec, nil
}

func (m *Manager) closeNoBuyers(ctx context.Context, l *listing.Listing, now time.Time) error {
	if err := l.TransitionTo(listing.StatusExpiredNoSale, now); err != nil {
		return err
	}
	if err := m.listings.Update(ctx, l); err != nil {
		return err
	}
	m.logger.Info().Str("listing_id", l.ListingID.String()).Msg("no remaining claimants")
	m.notify(ctx, l.SellerID, "No buyers",
		"No remaining claimant paid in time. Your listing has ended without a sale.",
		l.ListingID, "", decimal.Zero, notification.KindNoBuyers)
	m.publish(ctx, event.TypeListingExpired, l.ListingID, "system", map[string]interface{}{
		"status": l.Status,
	})
	return nil
}

func (m *Manager) arm(listingID uuid.UUID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.timers[listingID]; ok {
		a.timer.Stop()
	}
	d := at.Sub(m.clock.Now())
	if d < 0 {
		d = 0
	}
	m.gen++
	gen := m.gen
	m.timers[listingID] = armedTimer{
		gen:   gen,
		timer: m.clock.AfterFunc(d, func() { m.fire(listingID, gen) }),
	}
}

func (m *Manager) disarm(listingID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.timers[listingID]; ok {
		a.timer.Stop()
		delete(m.timers, listingID)
	}
}

func (m *Manager) fire(listingID uuid.UUID, gen uint64) {
	m.mu.Lock()
	a, ok := m.timers[listingID]
	if !ok || a.gen != gen {
		m.mu.Unlock()
		return
	}
	delete(m.timers, listingID)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.OnExpiry(ctx, listingID); err != nil {
		m.logger.Warn().Err(err).
			Str("listing_id", listingID.String()).
			Msg("payment window expiry failed, sweep will retry")
	}
}

func (m *Manager) notify(ctx context.Context, recipientID, title, body string, listingID uuid.UUID, kind activity.Kind, amount decimal.Decimal, nk notification.Kind) {
	if m.notifier == nil || recipientID == "" {
		return
	}
	n := notification.New(recipientID, title, body, notification.Data{
		ListingID:  listingID,
		ActionKind: string(kind),
		Amount:     amount,
		Kind:       nk,
	})
	if err := m.notifier.Notify(ctx, n); err != nil {
		m.logger.Warn().Err(err).
			Str("listing_id", listingID.String()).
			Str("recipient_id", recipientID).
			Msg("failed to notify")
	}
}

func (m *Manager) publish(ctx context.Context, t event.Type, listingID uuid.UUID, actor string, payload interface{}) {
	if m.publisher == nil {
		return
	}
	e, err := event.New(t, listingID, actor, payload)
	if err == nil {
		err = m.publisher.Publish(ctx, e)
	}
	if err != nil {
		m.logger.Warn().Err(err).
			Str("listing_id", listingID.String()).
			Str("event", string(t)).
			Msg("failed to publish event")
	}
}
