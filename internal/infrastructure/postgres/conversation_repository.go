package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resale-hub/claim-engine/internal/domain/conversation"
)

// ConversationRepository implements conversation.Repository.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// GetOrCreate inserts c unless a conversation for the same listing, buyer
// and seller exists. The bool reports whether c was inserted.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO conversations (conversation_id, listing_id, buyer_id, buyer_name, seller_id, opened_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (listing_id, buyer_id, seller_id) DO NOTHING
	`, c.ConversationID, c.ListingID, c.BuyerID, c.BuyerName, c.SellerID, c.OpenedBy, c.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	var out conversation.Conversation
	if err := r.pool.QueryRow(ctx, `
		SELECT id, conversation_id, listing_id, buyer_id, buyer_name, seller_id, opened_by, created_at
		FROM conversations WHERE listing_id=$1 AND buyer_id=$2 AND seller_id=$3
	`, c.ListingID, c.BuyerID, c.SellerID).Scan(&out.ID, &out.ConversationID, &out.ListingID, &out.BuyerID, &out.BuyerName,
		&out.SellerID, &out.OpenedBy, &out.CreatedAt); err != nil {
		return nil, false, err
	}
	return &out, tag.RowsAffected() == 1, nil
}

func (r *ConversationRepository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*conversation.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, listing_id, buyer_id, buyer_name, seller_id, opened_by, created_at
		FROM conversations WHERE listing_id=$1 ORDER BY id ASC
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*conversation.Conversation
	for rows.Next() {
		var c conversation.Conversation
		if err := rows.Scan(&c.ID, &c.ConversationID, &c.ListingID, &c.BuyerID, &c.BuyerName, &c.SellerID, &c.OpenedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

var _ conversation.Repository = (*ConversationRepository)(nil)
