package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/resale-hub/claim-engine/internal/domain/conversation"
)

type conversationKey struct {
	listingID uuid.UUID
	buyerID   string
	sellerID  string
}

// ConversationRepository implements conversation.Repository.
type ConversationRepository struct {
	mu    sync.Mutex
	seq   int64
	byKey map[conversationKey]*conversation.Conversation
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{byKey: make(map[conversationKey]*conversation.Conversation)}
}

func (r *ConversationRepository) GetOrCreate(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := conversationKey{listingID: c.ListingID, buyerID: c.BuyerID, sellerID: c.SellerID}
	if existing, ok := r.byKey[key]; ok {
		cp := *existing
		return &cp, false, nil
	}
	r.seq++
	c.ID = r.seq
	stored := *c
	r.byKey[key] = &stored
	cp := stored
	return &cp, true, nil
}

func (r *ConversationRepository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*conversation.Conversation
	for k, c := range r.byKey {
		if k.listingID == listingID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
