package events

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/floroz/escrow-auction/internal/config"
	pkgevents "github.com/floroz/escrow-auction/pkg/events"
)

// NewPublisher connects to the broker selected by EVENTS_BROKER. The returned
// func releases the connection.
func NewPublisher(cfg *config.Config) (pkgevents.EventPublisher, func(), error) {
	url := cfg.BrokerURL()
	if url == "" {
		return nil, nil, fmt.Errorf("no URL configured for broker %q", cfg.EventsBroker)
	}

	switch cfg.EventsBroker {
	case config.BrokerNATS:
		pub, err := pkgevents.NewNATSPublisher(url, nats.Name("escrow-auction-relay"))
		if err != nil {
			return nil, nil, err
		}
		return pub, func() { _ = pub.Close() }, nil

	case config.BrokerRabbitMQ:
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		pub, err := pkgevents.NewRabbitMQPublisher(conn, cfg.EventsExchange)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return pub, func() {
			_ = pub.Close()
			_ = conn.Close()
		}, nil

	default:
		return nil, nil, errors.New("unknown broker " + cfg.EventsBroker)
	}
}
