package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
	domainConversation "github.com/resale-hub/claim-engine/internal/domain/conversation"
	"github.com/resale-hub/claim-engine/internal/domain/event"
	"github.com/resale-hub/claim-engine/internal/domain/listing"
)

// Service opens buyer/seller conversations for claim actions.
type Service struct {
	repo      domainConversation.Repository
	publisher event.Publisher
	logger    zerolog.Logger
}

// NewService creates a conversation service.
func NewService(repo domainConversation.Repository, publisher event.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With().Str("service", "conversation").Logger(),
	}
}

// OpenFromAction returns the conversation between actorID and the seller,
// creating it on the first action.
func (s *Service) OpenFromAction(ctx context.Context, l *listing.Listing, kind activity.Kind, actorID, actorName string) (uuid.UUID, error) {
	if l == nil {
		return uuid.Nil, fmt.Errorf("open conversation: listing is nil")
	}
	c, created, err := s.repo.GetOrCreate(ctx, domainConversation.New(l.ListingID, actorID, actorName, l.SellerID, kind))
	if err != nil {
		return uuid.Nil, err
	}
	if !created {
		return c.ConversationID, nil
	}
	s.logger.Info().
		Str("listing_id", l.ListingID.String()).
		Str("buyer_id", actorID).
		Str("conversation_id", c.ConversationID.String()).
		Msg("conversation opened")
	if s.publisher != nil {
		e, err := event.New(event.TypeConversationOpened, l.ListingID, actorID, c)
		if err == nil {
			err = s.publisher.Publish(ctx, e)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("listing_id", l.ListingID.String()).Msg("failed to publish event")
		}
	}
	return c.ConversationID, nil
}

// ListByListing returns the listing's conversations.
func (s *Service) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*domainConversation.Conversation, error) {
	return s.repo.ListByListing(ctx, listingID)
}

var _ domainConversation.Sink = (*Service)(nil)
