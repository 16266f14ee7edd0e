package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/resale-hub/claim-engine/internal/domain/activity"
)

// Conversation is the buyer/seller thread about a listing. There is at most
// one per (listing, buyer, seller).
type Conversation struct {
	ID             int64         `json:"id"`
	ConversationID uuid.UUID     `json:"conversationId"`
	ListingID      uuid.UUID     `json:"listingId"`
	BuyerID        string        `json:"buyerId"`
	BuyerName      string        `json:"buyerName"`
	SellerID       string        `json:"sellerId"`
	OpenedBy       activity.Kind `json:"openedBy"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// New creates a conversation opened by a claim action.
func New(listingID uuid.UUID, buyerID, buyerName, sellerID string, kind activity.Kind) *Conversation {
	return &Conversation{
		ConversationID: uuid.New(),
		ListingID:      listingID,
		BuyerID:        buyerID,
		BuyerName:      buyerName,
		SellerID:       sellerID,
		OpenedBy:       kind,
		CreatedAt:      time.Now().UTC(),
	}
}
