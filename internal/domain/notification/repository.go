package notification

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_sink.go -package=mocks . Sink

import (
	"context"
	"time"
)

// Sink delivers notifications. Delivery is fire-and-forget from the
// caller's point of view; suppressing duplicates is the sink's job.
type Sink interface {
	Notify(ctx context.Context, n *Notification) error
}

// Repository stores delivered notifications as a per-user inbox.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*Notification, error)
}

// Deduper reports whether key was already seen within window and marks it
// seen otherwise.
type Deduper interface {
	Seen(ctx context.Context, key string, window time.Duration) (bool, error)
}

// SSEHub defines the interface for managing SSE connections
type SSEHub interface {
	Register(client *SSEClient)
	Unregister(clientID string)
	GetClientCount() int
	BroadcastToUser(userID string, message *SSEMessage)
	Stop()
}
