package app

import (
	"fmt"
	"io"

	amqp "github.com/rabbitmq/amqp091-go"

	"freight/internal/config"
	"freight/internal/events"
	"freight/internal/service"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// NewEventPublisher connects to RabbitMQ when enabled and otherwise logs
// events. The returned closer releases the channel and connection.
func NewEventPublisher(cfg config.AMQPConfig) (service.EventPublisher, io.Closer, error) {
	if !cfg.Enabled {
		return events.NewLogPublisher(), closerFunc(func() error { return nil }), nil
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	publisher, err := events.NewPublisher(conn)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	return publisher, closerFunc(func() error {
		_ = publisher.Close()
		return conn.Close()
	}), nil
}
