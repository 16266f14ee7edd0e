package bidding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/resale-hub/claim-engine/internal/application/apperr"
	"github.com/resale-hub/claim-engine/internal/application/validation"
	"github.com/resale-hub/claim-engine/internal/domain/activity"
	"github.com/resale-hub/claim-engine/internal/domain/bid"
	"github.com/resale-hub/claim-engine/internal/domain/event"
	"github.com/resale-hub/claim-engine/internal/domain/listing"
	domainLock "github.com/resale-hub/claim-engine/internal/domain/lock"
	"github.com/resale-hub/claim-engine/internal/domain/notification"
)

// Options tunes a Service.
type Options struct {
	LockTTL time.Duration
	Now     func() time.Time
}

// Service validates bids and keeps the listing's leading bid current.
type Service struct {
	listings  listing.Repository
	bids      bid.Repository
	ledger    activity.Repository
	locker    domainLock.Locker
	notifier  notification.Sink
	publisher event.Publisher
	lockTTL   time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService creates a bidding service.
func NewService(
	listings listing.Repository,
	bids bid.Repository,
	ledger activity.Repository,
	locker domainLock.Locker,
	notifier notification.Sink,
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
		listings:  listings,
		bids:      bids,
		ledger:    ledger,
		locker:    locker,
		notifier:  notifier,
		publisher: publisher,
		lockTTL:   opts.LockTTL,
		now:       opts.Now,
		logger:    logger.With().Str("service", "bidding").Logger(),
	}
}

// SubmitBid places a bid. Rejections are *validation.ValidationError and
// leave no trace. A *apperr.TransientIOError means the bid was not recorded.
func (s *Service) SubmitBid(ctx context.Context, listingID uuid.UUID, userID, userName string, amount float64) (*bid.Bid, error) {
	if userID == "" {
		return nil, validation.ValidateBid(validation.BidInput{})
	}

	unlock, err := s.locker.Acquire(ctx, domainLock.ListingKey(listingID.String()), s.lockTTL)
	if err != nil {
		return nil, err
	}
	placed, l, previous, err := s.place(ctx, listingID, userID, userName, amount)
	unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("listing_id", listingID.String()).
		Str("user_id", userID).
		Str("amount", placed.Amount.String()).
		Msg("bid placed")

	s.notify(ctx, l.SellerID, "New bid",
		fmt.Sprintf("%s bid %s on %s.", displayName(userName, userID), placed.Amount.StringFixed(2), l.Title),
		l.ListingID, placed.Amount, notification.KindBidOnListing)
	if previous != "" && previous != userID {
		s.notify(ctx, previous, "You've been outbid",
			fmt.Sprintf("The current bid on %s is now %s.", l.Title, placed.Amount.StringFixed(2)),
			l.ListingID, placed.Amount, notification.KindOutbid)
	}
	s.publish(ctx, l.ListingID, userID, placed)
	return placed, nil
}

// ListBids returns the listing's bids in placement order.
func (s *Service) ListBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	return s.bids.ListByListing(ctx, listingID)
}

// place runs under the listing lock. It returns the accepted bid, the
// updated listing and the previous leader.
//
// The ledger entry is written first. Once it exists the bid is accepted; a
// failure to store the bid row or the listing's current bid is logged, and
// later bids still see the amount through the ledger.
func (s *Service) place(ctx context.Context, listingID uuid.UUID, userID, userName string, amount float64) (*bid.Bid, *listing.Listing, string, error) {
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, nil, "", &apperr.TransientIOError{Op: "load listing", Err: err}
	}
	var existing []*bid.Bid
	current := decimal.Zero
	if l != nil {
		existing, err = s.bids.ListByListing(ctx, listingID)
		if err != nil {
			return nil, nil, "", &apperr.TransientIOError{Op: "load bids", Err: err}
		}
		history, err := s.ledger.ListByListing(ctx, listingID)
		if err != nil {
			return nil, nil, "", &apperr.TransientIOError{Op: "load ledger", Err: err}
		}
		current = currentBid(existing, history, l.StartingPrice)
	}

	now := s.now()
	if err := validation.ValidateBid(validation.BidInput{
		Listing: l,
		ActorID: userID,
		Amount:  amount,
		Current: current,
		Now:     now,
	}); err != nil {
		return nil, nil, "", err
	}

	previous := ""
	if lead := bid.Leader(existing); lead != nil {
		previous = lead.UserID
	}

	b := bid.NewBid(listingID, userID, userName, decimal.NewFromFloat(amount), now)
	entry := activity.NewEntry(listingID, userID, userName, activity.KindBid, b.Amount, now)
	if err := s.ledger.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("failed to append bid activity")
		return nil, nil, "", &apperr.TransientIOError{Op: "append activity", Err: err}
	}
	if err := s.bids.Create(ctx, b); err != nil {
		s.logger.Error().Err(err).Str("listing_id", listingID.String()).Str("user_id", userID).Msg("failed to store bid")
	}
	l.RecordBid(userID, b.Amount, now)
	if err := s.listings.Update(ctx, l); err != nil {
		s.logger.Error().Err(err).Str("listing_id", listingID.String()).Msg("failed to update current bid")
	}
	return b, l, previous, nil
}

// currentBid is the highest of the stored bids and the ledger's bid entries,
// floored at startingPrice.
func currentBid(bids []*bid.Bid, history []*activity.Entry, startingPrice decimal.Decimal) decimal.Decimal {
	current := bid.Current(bids, startingPrice)
	for _, e := range history {
		if e.Kind == activity.KindBid && e.Amount.GreaterThan(current) {
			current = e.Amount
		}
	}
	return current
}

func (s *Service) notify(ctx context.Context, recipientID, title, body string, listingID uuid.UUID, amount decimal.Decimal, kind notification.Kind) {
	if s.notifier == nil || recipientID == "" {
		return
	}
	n := notification.New(recipientID, title, body, notification.Data{
		ListingID:  listingID,
		ActionKind: string(activity.KindBid),
		Amount:     amount,
		Kind:       kind,
	})
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn().Err(err).
			Str("listing_id", listingID.String()).
			Str("recipient_id", recipientID).
			Msg("failed to notify")
	}
}

func (s *Service) publish(ctx context.Context, listingID uuid.UUID, actor string, b *bid.Bid) {
	if s.publisher == nil {
		return
	}
	e, err := event.New(event.TypeBidPlaced, listingID, actor, b)
	if err == nil {
		err = s.publisher.Publish(ctx, e)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("listing_id", listingID.String()).Msg("failed to publish event")
	}
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
