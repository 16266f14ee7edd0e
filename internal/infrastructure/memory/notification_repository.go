package memory

import (
	"context"
	"sync"
	"time"

	"github.com/resale-hub/claim-engine/internal/domain/notification"
)

// NotificationRepository implements notification.Repository.
type NotificationRepository struct {
	mu    sync.RWMutex
	items []notification.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = int64(len(r.items) + 1)
	r.items = append(r.items, *n)
	return nil
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*notification.Notification
	for i := len(r.items) - 1; i >= 0; i-- {
		if r.items[i].RecipientID == recipientID {
			n := r.items[i]
			out = append(out, &n)
		}
	}
	return page(out, limit, offset), nil
}

// Deduper implements notification.Deduper with a TTL map.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]time.Time), now: time.Now}
}

func (d *Deduper) Seen(ctx context.Context, key string, window time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if until, ok := d.seen[key]; ok && now.Before(until) {
		return true, nil
	}
	d.seen[key] = now.Add(window)
	if len(d.seen) > 4096 {
		for k, until := range d.seen {
			if !now.Before(until) {
				delete(d.seen, k)
			}
		}
	}
	return false, nil
}
