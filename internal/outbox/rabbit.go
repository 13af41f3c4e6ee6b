package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/repository"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 3 * time.Second

// RabbitPublisher publishes to a durable topic exchange. The routing key is the event type with
// a version suffix, e.g. payment.completed.v1.
type RabbitPublisher struct {
	ch       *amqp.Channel
	exchange string
}

func NewRabbitPublisher(conn *amqp.Connection, exchange string) (*RabbitPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &RabbitPublisher{ch: ch, exchange: exchange}, nil
}

func RoutingKey(eventType string) string {
	return eventType + ".v1"
}

func (p *RabbitPublisher) Publish(ctx context.Context, event *repository.OutboxEvent) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		p.exchange,
		RoutingKey(event.EventType),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    fmt.Sprintf("%s-%d", event.AggregateType, event.ID),
			Timestamp:    event.CreatedAt,
			Headers: amqp.Table{
				"aggregate_id": event.AggregateID,
			},
			Body: event.Payload,
		},
	)
}

func (p *RabbitPublisher) Close() error {
	return p.ch.Close()
}
