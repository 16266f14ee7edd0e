// Package natsbus archives listing events on a JetStream stream.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/resale-hub/claim-engine/internal/domain/event"
)

const (
	StreamName    = "CLAIM_EVENTS"
	StreamSubject = "listing.events.*"
)

// Publisher implements event.Publisher on JetStream. Each event carries its
// EventID as the message id so redelivered publishes are deduplicated by the
// server.
type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger zerolog.Logger
}

// Connect dials url and makes sure the stream exists.
func Connect(ctx context.Context, url string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("claim-engine"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	streamCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(streamCtx, streamConfig()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	p := &Publisher{
		conn:   conn,
		js:     js,
		logger: logger.With().Str("component", "nats_publisher").Logger(),
	}
	p.logger.Info().Str("stream", StreamName).Msg("jetstream stream ready")
	return p, nil
}

func streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Listing claim, bid and payment window events",
		Subjects:    []string{StreamSubject},
		Storage:     jetstream.FileStorage,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  2 * time.Minute,
		Replicas:    1,
	}
}

func (p *Publisher) Publish(ctx context.Context, e *event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	ack, err := p.js.Publish(ctx, e.Subject(), data, jetstream.WithMsgID(e.EventID.String()))
	if err != nil {
		return fmt.Errorf("jetstream publish %s: %w", e.Subject(), err)
	}
	p.logger.Debug().
		Str("event", string(e.Type)).
		Uint64("seq", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("event archived")
	return nil
}

func (p *Publisher) Close() {
	p.conn.Close()
}

var _ event.Publisher = (*Publisher)(nil)
