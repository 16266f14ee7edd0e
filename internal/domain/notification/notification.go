package notification

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind classifies why a notification was sent.
type Kind string

const (
	KindClaimOnListing  Kind = "claim_on_listing"
	KindListingActivity Kind = "listing_activity"
	KindBidOnListing    Kind = "bid_on_listing"
	KindOutbid          Kind = "outbid"
	KindPaymentWindow   Kind = "payment_window"
	KindYoureNext       Kind = "youre_next"
	KindNoBuyers        Kind = "no_buyers"
)

var (
	ErrClientNotFound = errors.New("SSE client not found")
	ErrChannelFull    = errors.New("SSE message channel full")
	ErrNoRecipient    = errors.New("notification has no recipient")
)

// Data is the structured payload attached to every notification.
type Data struct {
	ListingID  uuid.UUID       `json:"listingId"`
	ActionKind string          `json:"actionKind,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Kind       Kind            `json:"kind"`
}

// Notification is a message for one user.
type Notification struct {
	ID             int64     `json:"id"`
	NotificationID uuid.UUID `json:"notificationId"`
	RecipientID    string    `json:"recipientId"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Data           Data      `json:"data"`
	CreatedAt      time.Time `json:"createdAt"`
}

// New creates a notification for recipientID.
func New(recipientID, title, body string, data Data) *Notification {
	return &Notification{
		NotificationID: uuid.New(),
		RecipientID:    recipientID,
		Title:          title,
		Body:           body,
		Data:           data,
		CreatedAt:      time.Now().UTC(),
	}
}

// DedupeKey identifies notifications that should be collapsed within the
// suppression window.
func (n *Notification) DedupeKey() string {
	return n.RecipientID + ":" + n.Data.ListingID.String() + ":" + string(n.Data.Kind)
}

// SSEClient represents an active SSE connection
type SSEClient struct {
	ClientID    string
	UserID      string
	ConnectedAt time.Time
	MessageChan chan *SSEMessage
}

// NewSSEClient creates a new SSE client
func NewSSEClient(clientID, userID string) *SSEClient {
	return &SSEClient{
		ClientID:    clientID,
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
		MessageChan: make(chan *SSEMessage, 100),
	}
}

// Close closes the client's message channel
func (c *SSEClient) Close() {
	close(c.MessageChan)
}

// SSEMessage represents a message to be sent via SSE
type SSEMessage struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewSSEMessage creates a new SSE message
func NewSSEMessage(event string, data json.RawMessage) *SSEMessage {
	return &SSEMessage{
		ID:        uuid.New().String(),
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
