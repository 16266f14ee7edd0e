package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/resale-hub/claim-engine/internal/domain/event"
)

// ChannelPattern matches every listing's event channel.
const ChannelPattern = "listing.events.*"

// EventBus publishes listing events on Redis Pub/Sub so every instance can
// relay them to its own websocket clients.
type EventBus struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

func NewEventBus(c *Client, logger zerolog.Logger) *EventBus {
	return &EventBus{
		rdb:    c.Underlying(),
		logger: logger.With().Str("component", "redis_event_bus").Logger(),
	}
}

// Publish implements event.Publisher.
func (b *EventBus) Publish(ctx context.Context, e *event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, e.Subject(), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", e.Subject(), err)
	}
	return nil
}

// Relay subscribes to every listing channel and hands each decoded event to
// deliver until ctx is done.
func (b *EventBus) Relay(ctx context.Context, deliver func(*event.Event)) error {
	pubsub := b.rdb.PSubscribe(ctx, ChannelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("redis: subscribe %s: %w", ChannelPattern, err)
	}
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			e, err := decodeEvent(msg.Channel, msg.Payload)
			if err != nil {
				b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed event")
				continue
			}
			deliver(e)
		}
	}
}

func decodeEvent(channel, payload string) (*event.Event, error) {
	if !strings.HasPrefix(channel, "listing.events.") {
		return nil, fmt.Errorf("unexpected channel %q", channel)
	}
	var e event.Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return nil, err
	}
	if e.Subject() != channel {
		return nil, fmt.Errorf("event for %s published on %s", e.ListingID, channel)
	}
	return &e, nil
}

var _ event.Publisher = (*EventBus)(nil)
