// Package payment settles orders against the payment gateway exactly once per idempotency key.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/gateway"
	"github.com/fjod/go_cart/internal/lock"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultFinalizeTimeout = 5 * time.Second

// Timeouts bound the two phases of a gateway call. Finalize covers the terminal write made after
// the gateway answered, on a context detached from the caller.
type Timeouts struct {
	Gateway  time.Duration
	Finalize time.Duration
}

type Store interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	GetPaymentByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error)
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Payment, error)
	ListStalePendingPayments(ctx context.Context, olderThan time.Time) ([]*domain.Payment, error)
	HasCompletedPayment(ctx context.Context, orderID uuid.UUID) (bool, error)
	CompletePayment(ctx context.Context, paymentID uuid.UUID, gatewayResponse string) (*domain.Payment, error)
	FailPayment(ctx context.Context, paymentID uuid.UUID, reason, gatewayResponse string) (*domain.Payment, error)
	RefundPayment(ctx context.Context, paymentID uuid.UUID, gatewayResponse string) (*domain.Payment, error)
}

type OrderStore interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateOrderPricing(ctx context.Context, orderID uuid.UUID, items []domain.OrderItem, total decimal.Decimal) error
}

// InitiateRequest is one client attempt to pay an order. CustomerID, when set, must own the order.
type InitiateRequest struct {
	OrderID        uuid.UUID
	CustomerID     string
	PaymentMethod  domain.PaymentMethod
	Amount         decimal.Decimal
	IdempotencyKey string
}

func (r InitiateRequest) validate() error {
	if r.IdempotencyKey == "" {
		return domain.ErrMissingIdempotencyKey
	}
	if !r.PaymentMethod.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidPaymentMethod, r.PaymentMethod)
	}
	if !r.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	return nil
}

type Coordinator struct {
	payments Store
	orders   OrderStore
	repricer *pricing.Repricer
	gateway  gateway.Gateway
	locker   lock.Locker
	timeouts Timeouts
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewCoordinator(
	payments Store,
	orders OrderStore,
	repricer *pricing.Repricer,
	gw gateway.Gateway,
	locker lock.Locker,
	timeouts Timeouts,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) *Coordinator {
	if timeouts.Finalize <= 0 {
		timeouts.Finalize = defaultFinalizeTimeout
	}
	return &Coordinator{
		payments: payments,
		orders:   orders,
		repricer: repricer,
		gateway:  gw,
		locker:   locker,
		timeouts: timeouts,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// InitiatePayment drives one payment attempt. A gateway failure is not an error: the FAILED
// payment is returned so the client can retry with a new key.
func (c *Coordinator) InitiatePayment(ctx context.Context, req InitiateRequest) (*domain.Payment, error) {
	p, err := c.initiate(ctx, req)
	switch {
	case err != nil:
		c.metrics.Payments.WithLabelValues(domain.KindOf(err).String()).Inc()
	case p != nil:
		c.metrics.Payments.WithLabelValues(outcomeLabel(p)).Inc()
	}
	return p, err
}

func (c *Coordinator) initiate(ctx context.Context, req InitiateRequest) (*domain.Payment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	log := c.log.WithFields(logrus.Fields{
		"order_id":        req.OrderID,
		"idempotency_key": req.IdempotencyKey,
	})

	if existing, err := c.replay(ctx, req); existing != nil || err != nil {
		return existing, err
	}

	unlock, err := c.locker.Lock(ctx, "payment:"+req.OrderID.String())
	if err != nil {
		return nil, fmt.Errorf("acquire payment lock: %w", err)
	}
	defer unlock()

	// a request holding the same key may have finished while we waited
	if existing, err := c.replay(ctx, req); existing != nil || err != nil {
		return existing, err
	}

	order, err := c.orders.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if req.CustomerID != "" && order.CustomerID != req.CustomerID {
		return nil, domain.ErrOrderNotFound
	}
	if order.Status == domain.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: order %s is cancelled", domain.ErrInvalidTransition, order.ID)
	}

	priced, total, err := c.repricer.Reprice(ctx, pricing.LinesFromOrder(order.Items))
	if err != nil {
		var lineErr *pricing.LineError
		if errors.As(err, &lineErr) {
			return nil, fmt.Errorf("%w: %w", domain.ErrPaymentValidationFailed, err)
		}
		return nil, fmt.Errorf("reprice order: %w", err)
	}

	if !req.Amount.Equal(total) {
		return nil, fmt.Errorf("%w: client stated %s, order total is %s",
			domain.ErrAmountMismatch, req.Amount.StringFixed(2), total.StringFixed(2))
	}

	completed, err := c.payments.HasCompletedPayment(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if completed {
		return nil, domain.ErrPaymentAlreadyCompleted
	}

	if !total.Equal(order.TotalAmount) {
		if err := c.orders.UpdateOrderPricing(ctx, order.ID, pricing.OrderItems(priced), total); err != nil {
			return nil, fmt.Errorf("correct order total: %w", err)
		}
		log.WithFields(logrus.Fields{
			"old_total": order.TotalAmount.StringFixed(2),
			"new_total": total.StringFixed(2),
		}).Info("order total corrected to live prices")
	}

	p := &domain.Payment{
		ID:             uuid.New(),
		OrderID:        order.ID,
		IdempotencyKey: req.IdempotencyKey,
		PaymentMethod:  req.PaymentMethod,
		Amount:         total,
		Status:         domain.PaymentStatusPending,
		TransactionID:  req.IdempotencyKey,
	}
	if err := c.payments.CreatePayment(ctx, p); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			log.Info("lost idempotency race, returning stored payment")
			return c.replay(ctx, req)
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}

	return c.charge(ctx, p, log.WithField("payment_id", p.ID))
}

// replay returns the stored payment for the request's key, or nil when there is none.
func (c *Coordinator) replay(ctx context.Context, req InitiateRequest) (*domain.Payment, error) {
	existing, err := c.payments.GetPaymentByIdempotencyKey(ctx, req.IdempotencyKey)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if req.CustomerID != "" {
		if err := c.checkOwner(ctx, req.OrderID, req.CustomerID); err != nil {
			return nil, err
		}
	}
	if existing.OrderID != req.OrderID {
		return nil, fmt.Errorf("%w: key belongs to another order", domain.ErrDuplicateIdempotencyKey)
	}
	return existing, nil
}

// checkOwner hides orders of other customers behind ErrOrderNotFound.
func (c *Coordinator) checkOwner(ctx context.Context, orderID uuid.UUID, customerID string) error {
	order, err := c.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.CustomerID != customerID {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (c *Coordinator) charge(ctx context.Context, p *domain.Payment, log logrus.FieldLogger) (*domain.Payment, error) {
	gwCtx, cancel := context.WithTimeout(ctx, c.timeouts.Gateway)
	start := c.now()
	resp, gwErr := c.gateway.Charge(gwCtx, p)
	cancel()
	c.observeGateway("charge", start, gwErr)

	// the row must reach a terminal status even if the caller has gone away
	finalCtx, cancelFinal := context.WithTimeout(context.WithoutCancel(ctx), c.timeouts.Finalize)
	defer cancelFinal()

	if gwErr != nil {
		reason := failureReason(gwErr, c.timeouts.Gateway)
		failed, err := c.payments.FailPayment(finalCtx, p.ID, reason, "")
		if err != nil {
			log.WithError(err).Error("failed to record failed payment, row left PENDING")
			return nil, fmt.Errorf("record failed payment: %w", err)
		}
		log.WithField("failure_reason", reason).Warn("payment failed at gateway")
		return failed, nil
	}

	done, err := c.payments.CompletePayment(finalCtx, p.ID, resp)
	if err != nil {
		log.WithError(err).Error("gateway charged but payment not recorded, row left PENDING")
		return nil, fmt.Errorf("record completed payment: %w", err)
	}
	log.WithField("amount", done.Amount.StringFixed(2)).Info("payment completed")
	return done, nil
}

func failureReason(err error, timeout time.Duration) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("payment gateway timed out after %s", timeout)
	case errors.Is(err, context.Canceled):
		return "payment request cancelled before the gateway answered"
	default:
		return err.Error()
	}
}

func (c *Coordinator) observeGateway(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.GatewayLatencyMS.WithLabelValues(op, result).Observe(float64(c.now().Sub(start).Milliseconds()))
}

func outcomeLabel(p *domain.Payment) string {
	switch p.Status {
	case domain.PaymentStatusCompleted:
		return "completed"
	case domain.PaymentStatusFailed:
		return "failed"
	default:
		return "pending"
	}
}
