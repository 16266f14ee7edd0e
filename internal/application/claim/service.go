package claim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/resale-hub/claim-engine/internal/application/apperr"
	"github.com/resale-hub/claim-engine/internal/application/validation"
	"github.com/resale-hub/claim-engine/internal/domain/activity"
	"github.com/resale-hub/claim-engine/internal/domain/conversation"
	"github.com/resale-hub/claim-engine/internal/domain/event"
	"github.com/resale-hub/claim-engine/internal/domain/listing"
	domainLock "github.com/resale-hub/claim-engine/internal/domain/lock"
	"github.com/resale-hub/claim-engine/internal/domain/notification"
	"github.com/resale-hub/claim-engine/internal/domain/payment"
)

// PaymentWindows is the part of the payment window manager the resolver
// drives.
type PaymentWindows interface {
	StartOrRefresh(ctx context.Context, listingID uuid.UUID, buyerID string, kind activity.Kind, amount decimal.Decimal) (*payment.Record, error)
	NextClaimant(ctx context.Context, l *listing.Listing) (*activity.Entry, error)
}

// ActionRequest is a claim attempt. A nil Amount means the listing's fixed
// price for Kind; any other amount must equal it.
type ActionRequest struct {
	ListingID uuid.UUID
	UserID    string
	UserName  string
	Kind      activity.Kind
	Amount    *float64
}

// Result describes an applied action. Warnings lists side effects that
// failed after the ledger entry was written.
type Result struct {
	Entry          *activity.Entry  `json:"entry"`
	Listing        *listing.Listing `json:"listing"`
	ConversationID uuid.UUID        `json:"conversationId,omitempty"`
	PaymentRecord  *payment.Record  `json:"paymentRecord,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
}

// Options tunes a Service.
type Options struct {
	LockTTL time.Duration
	Now     func() time.Time
}

// Service resolves claim actions into ledger entries and listing state.
type Service struct {
	listings      listing.Repository
	ledger        activity.Repository
	locker        domainLock.Locker
	conversations conversation.Sink
	notifier      notification.Sink
	windows       PaymentWindows
	publisher     event.Publisher
	lockTTL       time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

// NewService creates a claim resolver.
func NewService(
	listings listing.Repository,
	ledger activity.Repository,
	locker domainLock.Locker,
	conversations conversation.Sink,
	notifier notification.Sink,
	windows PaymentWindows,
	publisher event.Publisher,
	opts Options,
	logger zerolog.Logger,
) *Service {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		listings:      listings,
		ledger:        ledger,
		locker:        locker,
		conversations: conversations,
		notifier:      notifier,
		windows:       windows,
		publisher:     publisher,
		lockTTL:       opts.LockTTL,
		now:           opts.Now,
		logger:        logger.With().Str("service", "claim").Logger(),
	}
}

// Apply validates and applies a claim action. A *validation.ValidationError
// means nothing was written. A *apperr.TransientIOError means the ledger append
// failed and nothing else was attempted.
func (s *Service) Apply(ctx context.Context, req ActionRequest) (*Result, error) {
	if req.UserID == "" {
		return nil, validation.Validate(validation.Input{})
	}

	unlock, err := s.locker.Acquire(ctx, domainLock.ListingKey(req.ListingID.String()), s.lockTTL)
	if err != nil {
		return nil, err
	}
	res, prior, err := s.record(ctx, req)
	unlock()
	if err != nil {
		return nil, err
	}
	l := res.Listing
	logger := s.logger.With().
		Str("listing_id", l.ListingID.String()).
		Str("user_id", req.UserID).
		Str("kind", string(req.Kind)).
		Logger()
	logger.Info().Str("amount", res.Entry.Amount.String()).Msg("claim applied")

	convID, err := s.conversations.OpenFromAction(ctx, l, req.Kind, req.UserID, req.UserName)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to open conversation")
		res.Warnings = append(res.Warnings, "conversation: "+err.Error())
	} else {
		res.ConversationID = convID
	}

	res.Warnings = append(res.Warnings, s.notifyClaim(ctx, l, res.Entry, prior)...)

	if req.Kind == activity.KindLock {
		rec, err := s.windows.StartOrRefresh(ctx, l.ListingID, req.UserID, req.Kind, res.Entry.Amount)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to start payment window")
			res.Warnings = append(res.Warnings, "payment window: "+err.Error())
		} else {
			res.PaymentRecord = rec
		}
	}

	s.publish(ctx, event.TypeClaimApplied, l.ListingID, req.UserID, res.Entry)
	return res, nil
}

// record runs under the listing lock: validate, append, flip to locked. It
// also returns the ledger as it was before the append.
func (s *Service) record(ctx context.Context, req ActionRequest) (*Result, []*activity.Entry, error) {
	l, err := s.listings.GetByID(ctx, req.ListingID)
	if err != nil {
		return nil, nil, &apperr.TransientIOError{Op: "load listing", Err: err}
	}
	var history []*activity.Entry
	price := 0.0
	if l != nil {
		history, err = s.ledger.ListByListing(ctx, req.ListingID)
		if err != nil {
			return nil, nil, &apperr.TransientIOError{Op: "load ledger", Err: err}
		}
		price = l.PriceFor(req.Kind).InexactFloat64()
	}
	// A client amount is only ever checked against the listing price; the
	// ledger records the listing's own figure.
	if req.Amount != nil {
		price = *req.Amount
	}

	now := s.now()
	if err := validation.Validate(validation.Input{
		Listing:       l,
		ActorID:       req.UserID,
		Kind:          req.Kind,
		ProposedPrice: price,
		History:       history,
		Now:           now,
	}); err != nil {
		return nil, nil, err
	}

	entry := activity.NewEntry(l.ListingID, req.UserID, req.UserName, req.Kind, l.PriceFor(req.Kind), now)
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("listing_id", l.ListingID.String()).Msg("failed to append activity")
		return nil, nil, &apperr.TransientIOError{Op: "append activity", Err: err}
	}

	res := &Result{Entry: entry, Listing: l}
	if req.Kind == activity.KindLock {
		if err := s.lockListing(ctx, l, now); err != nil {
			s.logger.Warn().Err(err).Str("listing_id", l.ListingID.String()).Msg("failed to lock listing")
			res.Warnings = append(res.Warnings, "listing status: "+err.Error())
		}
	}
	return res, history, nil
}

func (s *Service) lockListing(ctx context.Context, l *listing.Listing, now time.Time) error {
	prev := *l
	if err := l.TransitionTo(listing.StatusLocked, now); err != nil {
		return err
	}
	if err := s.listings.Update(ctx, l); err != nil {
		*l = prev
		return err
	}
	return nil
}

// notifyClaim tells the seller and every earlier participant about the
// action. It returns a warning per failed delivery.
func (s *Service) notifyClaim(ctx context.Context, l *listing.Listing, e *activity.Entry, prior []*activity.Entry) []string {
	if s.notifier == nil {
		return nil
	}
	who := e.UserName
	if who == "" {
		who = e.UserID
	}
	action := strings.ToUpper(string(e.Kind[:1])) + string(e.Kind[1:])
	data := notification.Data{
		ListingID:  l.ListingID,
		ActionKind: string(e.Kind),
		Amount:     e.Amount,
	}

	var warnings []string
	send := func(recipient, title, body string, kind notification.Kind) {
		d := data
		d.Kind = kind
		if err := s.notifier.Notify(ctx, notification.New(recipient, title, body, d)); err != nil {
			s.logger.Warn().Err(err).
				Str("listing_id", l.ListingID.String()).
				Str("recipient_id", recipient).
				Msg("failed to notify")
			warnings = append(warnings, fmt.Sprintf("notify %s: %v", recipient, err))
		}
	}

	send(l.SellerID, fmt.Sprintf("New %s on your listing", action),
		fmt.Sprintf("%s used %s on %s for %s.", who, e.Kind, l.Title, e.Amount.StringFixed(2)),
		notification.KindClaimOnListing)
	for _, p := range activity.Participants(prior, e.UserID, l.SellerID) {
		send(p, "Listing activity",
			fmt.Sprintf("%s used %s on %s.", who, e.Kind, l.Title),
			notification.KindListingActivity)
	}
	return warnings
}

// CloseDueListings ends active listings whose deadline has passed. The
// top-served claimant gets a payment window; listings nobody claimed end
// without a sale.
func (s *Service) CloseDueListings(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	due, err := s.listings.ListDue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, l := range due {
		ok, err := s.closeListing(ctx, l.ListingID)
		if err != nil {
			s.logger.Warn().Err(err).Str("listing_id", l.ListingID.String()).Msg("failed to close listing")
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

func (s *Service) closeListing(ctx context.Context, listingID uuid.UUID) (bool, error) {
	unlock, err := s.locker.Acquire(ctx, domainLock.ListingKey(listingID.String()), s.lockTTL)
	if err != nil {
		return false, err
	}
	l, next, err := s.settle(ctx, listingID)
	unlock()
	if err != nil || l == nil {
		return false, err
	}

	if next == nil {
		s.logger.Info().Str("listing_id", listingID.String()).Msg("listing ended without claimants")
		if s.notifier != nil {
			n := notification.New(l.SellerID, "No buyers",
				fmt.Sprintf("%s ended without any claims or bids.", l.Title),
				notification.Data{ListingID: l.ListingID, Kind: notification.KindNoBuyers})
			if err := s.notifier.Notify(ctx, n); err != nil {
				s.logger.Warn().Err(err).Str("listing_id", listingID.String()).Msg("failed to notify")
			}
		}
		s.publish(ctx, event.TypeListingExpired, listingID, "", map[string]interface{}{"status": l.Status})
		return true, nil
	}

	s.logger.Info().
		Str("listing_id", listingID.String()).
		Str("buyer_id", next.UserID).
		Str("kind", string(next.Kind)).
		Msg("listing ended, serving top claimant")
	if _, err := s.windows.StartOrRefresh(ctx, listingID, next.UserID, next.Kind, next.Amount); err != nil {
		return true, err
	}
	return true, nil
}

// settle runs under the listing lock. It returns a nil listing when there is
// nothing to do.
func (s *Service) settle(ctx context.Context, listingID uuid.UUID) (*listing.Listing, *activity.Entry, error) {
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil || l == nil {
		return nil, nil, err
	}
	now := s.now()
	if !l.IsOpen() || !l.IsPastDeadline(now) {
		return nil, nil, nil
	}
	next, err := s.windows.NextClaimant(ctx, l)
	if err != nil {
		return nil, nil, err
	}
	target := listing.StatusLocked
	if next == nil {
		target = listing.StatusExpiredNoSale
	}
	if err := l.TransitionTo(target, now); err != nil {
		return nil, nil, err
	}
	if err := s.listings.Update(ctx, l); err != nil {
		return nil, nil, err
	}
	return l, next, nil
}

func (s *Service) publish(ctx context.Context, t event.Type, listingID uuid.UUID, actor string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	e, err := event.New(t, listingID, actor, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, e)
	}
	if err != nil {
		s.logger.Warn().Err(err).
			Str("listing_id", listingID.String()).
			Str("event", string(t)).
			Msg("failed to publish event")
	}
}
