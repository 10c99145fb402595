package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 3 * time.Second

// Publisher sends events to the topic exchange over one AMQP channel.
type Publisher struct {
	ch *amqp.Channel
}

// NewPublisher opens a channel on conn and declares the events exchange.
func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return &Publisher{ch: ch}, nil
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

// Close closes the channel.
func (p *Publisher) Close() error {
	return p.ch.Close()
}

// PublishBookingCreated publishes booking.created.v1.
func (p *Publisher) PublishBookingCreated(ctx context.Context, ev BookingCreated) error {
	return p.publish(ctx, BookingCreatedRoutingKey, ev)
}

// PublishBookingStatusChanged publishes booking.status_changed.v1.
func (p *Publisher) PublishBookingStatusChanged(ctx context.Context, ev BookingStatusChanged) error {
	return p.publish(ctx, BookingStatusChangedRoutingKey, ev)
}

// PublishCompensationFailed publishes capacity.compensation_failed.v1.
func (p *Publisher) PublishCompensationFailed(ctx context.Context, ev CompensationFailed) error {
	return p.publish(ctx, CompensationFailedRoutingKey, ev)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(newEnvelope(routingKey, payload))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", routingKey, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
