package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/resale-hub/claim-engine/internal/domain/notification"
)

// Deduper implements notification.Deduper with SETNX keys that expire after
// the window.
type Deduper struct {
	rdb *redis.Client
}

func NewDeduper(c *Client) *Deduper {
	return &Deduper{rdb: c.Underlying()}
}

func dedupKey(key string) string {
	return "notify:dedup:" + key
}

func (d *Deduper) Seen(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, dedupKey(key), 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("redis: dedup %s: %w", key, err)
	}
	return !ok, nil
}

var _ notification.Deduper = (*Deduper)(nil)
