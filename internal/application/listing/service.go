package listing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
	"github.com/resale-hub/claim-engine/internal/domain/bid"
	domainListing "github.com/resale-hub/claim-engine/internal/domain/listing"
	"github.com/resale-hub/claim-engine/internal/domain/payment"
)

// CreateInput describes a new listing.
type CreateInput struct {
	SellerID      string
	Title         string
	PriceMode     domainListing.PriceMode
	MinePrice     decimal.Decimal
	StealPrice    decimal.Decimal
	LockPrice     decimal.Decimal
	StartingPrice decimal.Decimal
	MinIncrement  decimal.Decimal
	EndDeadline   time.Time
}

// Service is the read side of a listing plus listing creation.
type Service struct {
	listings domainListing.Repository
	ledger   activity.Repository
	bids     bid.Repository
	payments payment.Repository
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates a listing service.
func NewService(
	listings domainListing.Repository,
	ledger activity.Repository,
	bids bid.Repository,
	payments payment.Repository,
	logger zerolog.Logger,
) *Service {
	return &Service{
		listings: listings,
		ledger:   ledger,
		bids:     bids,
		payments: payments,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With().Str("service", "listing").Logger(),
	}
}

// Create stores an active listing.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domainListing.Listing, error) {
	now := s.now()
	l := &domainListing.Listing{
		ListingID:     uuid.New(),
		SellerID:      in.SellerID,
		Title:         in.Title,
		PriceMode:     in.PriceMode,
		MinePrice:     in.MinePrice,
		StealPrice:    in.StealPrice,
		LockPrice:     in.LockPrice,
		StartingPrice: in.StartingPrice,
		MinIncrement:  in.MinIncrement,
		Status:        domainListing.StatusActive,
		EndDeadline:   in.EndDeadline.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if l.PriceMode == domainListing.PriceModeBidding {
		l.CurrentBid = l.StartingPrice
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if !l.EndDeadline.After(now) {
		return nil, fmt.Errorf("%w: end deadline must be in the future", domainListing.ErrInvalidListing)
	}
	if err := s.listings.Create(ctx, l); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("listing_id", l.ListingID.String()).
		Str("seller_id", l.SellerID).
		Str("price_mode", string(l.PriceMode)).
		Msg("listing created")
	return l, nil
}

// Get returns the listing or nil when it does not exist.
func (s *Service) Get(ctx context.Context, listingID uuid.UUID) (*domainListing.Listing, error) {
	return s.listings.GetByID(ctx, listingID)
}

// ListActivity returns the listing's ledger in append order.
func (s *Service) ListActivity(ctx context.Context, listingID uuid.UUID) ([]*activity.Entry, error) {
	return s.ledger.ListByListing(ctx, listingID)
}

// ListUserActivity returns a user's ledger entries across listings.
func (s *Service) ListUserActivity(ctx context.Context, userID string, limit, offset int) ([]*activity.Entry, error) {
	return s.ledger.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) ListBids(ctx context.Context, listingID uuid.UUID) ([]*bid.Bid, error) {
	return s.bids.ListByListing(ctx, listingID)
}

func (s *Service) ListPayments(ctx context.Context, listingID uuid.UUID) ([]*payment.Record, error) {
	return s.payments.ListByListing(ctx, listingID)
}
