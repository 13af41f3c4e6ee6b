// Package outbox relays committed outbox rows to the event broker.
package outbox

import (
	"context"

	"github.com/fjod/go_cart/internal/repository"
	"github.com/sirupsen/logrus"
)

// Publisher delivers one event. Delivery is at-least-once: an event whose processed mark fails
// is published again on the next tick.
type Publisher interface {
	Publish(ctx context.Context, event *repository.OutboxEvent) error
	Close() error
}

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event *repository.OutboxEvent) error {
	p.log.WithFields(logrus.Fields{
		"event_id":       event.ID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
	}).Info(string(event.Payload))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
