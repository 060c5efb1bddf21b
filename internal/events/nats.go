package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher implements Publisher using NATS
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher creates a new NATS-backed publisher
func NewNATSPublisher(natsURL, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(natsURL, nats.Name("replay"))
	if err != nil {
		return nil, err
	}

	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// Close drains and closes the NATS connection
func (n *NATSPublisher) Close() {
	if n.conn != nil {
		if err := n.conn.Drain(); err != nil {
			n.conn.Close()
		}
	}
}

// PublishBufferEvent publishes to the main subject and to <subject>.<kind>
func (n *NATSPublisher) PublishBufferEvent(ctx context.Context, event BufferEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		n.logger.Error().Err(err).Str("subject", n.subject).Msg("Failed to publish buffer event")
		return err
	}

	routingKey := n.subject + "." + string(event.Kind)
	if err := n.conn.Publish(routingKey, data); err != nil {
		n.logger.Error().Err(err).Str("routing_key", routingKey).Msg("Failed to publish to routing key")
		return err
	}

	n.logger.Debug().
		Str("kind", string(event.Kind)).
		Int("size", event.Size).
		Str("subject", n.subject).
		Msg("Published buffer event")

	return nil
}
