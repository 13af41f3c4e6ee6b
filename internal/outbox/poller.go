package outbox

import (
	"context"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/sirupsen/logrus"
)

type EventStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
	ListStalePendingPayments(ctx context.Context, olderThan time.Time) ([]*domain.Payment, error)
}

type Config struct {
	EventTick  time.Duration
	StaleTick  time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// Poller publishes committed events and keeps an eye on payments stuck in PENDING.
type Poller struct {
	cfg       Config
	repo      EventStore
	publisher Publisher
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewPoller(repo EventStore, publisher Publisher, cfg Config, m *metrics.Metrics, log logrus.FieldLogger) *Poller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Poller{
		cfg:       cfg,
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

func (p *Poller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.cfg.EventTick)
	staleTicker := time.NewTicker(p.cfg.StaleTick)
	defer eventTicker.Stop()
	defer staleTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-staleTicker.C:
			p.inspectStalePayments(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.cfg.BatchSize)
	if err != nil {
		p.log.WithError(err).Error("failed to fetch outbox events")
		return
	}

	for _, event := range events {
		log := p.log.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.EventType,
		})

		if err := p.publisher.Publish(ctx, event); err != nil {
			log.WithError(err).Warn("failed to publish event")
			p.metrics.OutboxEvents.WithLabelValues(event.EventType, "publish_error").Inc()
			continue
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.WithError(err).Warn("failed to mark event as processed")
			p.metrics.OutboxEvents.WithLabelValues(event.EventType, "mark_error").Inc()
			continue
		}
		p.metrics.OutboxEvents.WithLabelValues(event.EventType, "published").Inc()
	}
}

// inspectStalePayments reports PENDING payments whose terminal write never happened.
// Reconciling them against the gateway is left to an operator.
func (p *Poller) inspectStalePayments(ctx context.Context) {
	payments, err := p.repo.ListStalePendingPayments(ctx, p.now().Add(-p.cfg.StaleAfter))
	if err != nil {
		p.log.WithError(err).Error("failed to list stale payments")
		return
	}

	p.metrics.StalePayments.Set(float64(len(payments)))
	for _, payment := range payments {
		p.log.WithFields(logrus.Fields{
			"payment_id":      payment.ID,
			"order_id":        payment.OrderID,
			"idempotency_key": payment.IdempotencyKey,
			"created_at":      payment.CreatedAt,
		}).Warn("payment stuck in PENDING")
	}
}
