package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/resale-hub/claim-engine/internal/domain/notification"
)

// DefaultDedupWindow collapses repeated notifications of the same kind about
// the same listing to one recipient.
const DefaultDedupWindow = 30 * time.Second

// Service is the notification sink: it stores each notification in the
// recipient's inbox and pushes it to their open SSE streams.
type Service struct {
	repo   notification.Repository
	dedup  notification.Deduper
	hub    notification.SSEHub
	window time.Duration
	logger zerolog.Logger
}

// NewService creates a notification service. dedup and hub may be nil.
func NewService(repo notification.Repository, dedup notification.Deduper, hub notification.SSEHub, window time.Duration, logger zerolog.Logger) *Service {
	if window < 0 {
		window = 0
	}
	return &Service{
		repo:   repo,
		dedup:  dedup,
		hub:    hub,
		window: window,
		logger: logger.With().Str("service", "notify").Logger(),
	}
}

// Notify delivers n. Duplicates inside the dedup window are dropped
// silently.
func (s *Service) Notify(ctx context.Context, n *notification.Notification) error {
	if n == nil || n.RecipientID == "" {
		return notification.ErrNoRecipient
	}
	if s.dedup != nil && s.window > 0 {
		seen, err := s.dedup.Seen(ctx, n.DedupeKey(), s.window)
		if err != nil {
			s.logger.Warn().Err(err).Str("recipient_id", n.RecipientID).Msg("dedup check failed")
		} else if seen {
			s.logger.Debug().
				Str("recipient_id", n.RecipientID).
				Str("kind", string(n.Data.Kind)).
				Msg("duplicate notification suppressed")
			return nil
		}
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}
	s.push(n)
	return nil
}

// ListForUser returns a user's inbox, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*notification.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByRecipient(ctx, userID, limit, offset)
}

func (s *Service) push(n *notification.Notification) {
	if s.hub == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal notification")
		return
	}
	s.hub.BroadcastToUser(n.RecipientID, notification.NewSSEMessage("notification", data))
}

var _ notification.Sink = (*Service)(nil)
