package event

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_publisher.go -package=mocks . Publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

const (
	TypeClaimApplied        Type = "claim.applied"
	TypeBidPlaced           Type = "bid.placed"
	TypePaymentWindowOpened Type = "payment.window_opened"
	TypePaymentSubmitted    Type = "payment.submitted"
	TypePaymentReassigned   Type = "payment.reassigned"
	TypeListingExpired      Type = "listing.expired_no_sale"
	TypeConversationOpened  Type = "conversation.opened"
)

// Event is published after a listing changes. Subscribers (live feeds,
// archival, analytics) react to it; the engine never reads events back.
type Event struct {
	EventID   uuid.UUID       `json:"eventId"`
	Type      Type            `json:"type"`
	ListingID uuid.UUID       `json:"listingId"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// New builds an event, marshalling payload to JSON.
func New(t Type, listingID uuid.UUID, actor string, payload interface{}) (*Event, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	if actor == "" {
		actor = "system"
	}
	return &Event{
		EventID:   uuid.New(),
		Type:      t,
		ListingID: listingID,
		Actor:     actor,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Subject is the routing key for the listing's event stream.
func (e *Event) Subject() string {
	return "listing.events." + e.ListingID.String()
}

// Publisher fans events out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
}
