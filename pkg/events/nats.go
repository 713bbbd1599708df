package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const natsFlushTimeout = 5 * time.Second

// NATSPublisher implements EventPublisher on core NATS. The exchange and
// routing key are joined into the subject, so "auction.events" and
// "bid.placed" publish on "auction.events.bid.placed".
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

// Subject returns the subject an event is published on
func Subject(exchange, routingKey string) string {
	if exchange == "" {
		return routingKey
	}
	return exchange + "." + routingKey
}

// Publish publishes body and waits for the server to process it, so a
// successful return means the message left this process.
func (p *NATSPublisher) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	if err := p.conn.Publish(Subject(exchange, routingKey), body); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, natsFlushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	return nil
}

// Conn exposes the underlying connection
func (p *NATSPublisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
