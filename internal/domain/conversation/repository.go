package conversation

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_sink.go -package=mocks . Sink

import (
	"context"

	"github.com/google/uuid"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
	"github.com/resale-hub/claim-engine/internal/domain/listing"
)

// Sink opens the buyer/seller conversation for a claim action. It is
// create-or-get: repeated calls for the same pair return the same id.
type Sink interface {
	OpenFromAction(ctx context.Context, l *listing.Listing, kind activity.Kind, actorID, actorName string) (uuid.UUID, error)
}

// Repository persists conversations. GetOrCreate returns the stored row for
// the (listing, buyer, seller) triple, inserting c only when none exists.
type Repository interface {
	GetOrCreate(ctx context.Context, c *Conversation) (*Conversation, bool, error)
	ListByListing(ctx context.Context, listingID uuid.UUID) ([]*Conversation, error)
}
