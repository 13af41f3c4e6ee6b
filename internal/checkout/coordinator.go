// Package checkout turns a customer's cart into a priced, immutable order.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/lock"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type CartStore interface {
	LoadCart(ctx context.Context, customerID string) (*domain.Cart, error)
	ClearItems(ctx context.Context, customerID string) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
}

type Coordinator struct {
	carts    CartStore
	orders   OrderStore
	repricer *pricing.Repricer
	locker   lock.Locker
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

func NewCoordinator(
	carts CartStore,
	orders OrderStore,
	repricer *pricing.Repricer,
	locker lock.Locker,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) *Coordinator {
	return &Coordinator{
		carts:    carts,
		orders:   orders,
		repricer: repricer,
		locker:   locker,
		metrics:  m,
		log:      log,
	}
}

// ConvertCartToOrder re-prices every cart line against the live catalog, stores the order and
// only then empties the cart. It holds the customer's cart lock throughout, so checkouts and cart
// mutations of one customer never interleave.
func (c *Coordinator) ConvertCartToOrder(ctx context.Context, customerID string) (*domain.Order, error) {
	log := c.log.WithField("customer_id", customerID)

	unlock, err := c.locker.Lock(ctx, lock.CustomerKey(customerID))
	if err != nil {
		return nil, fmt.Errorf("acquire checkout lock: %w", err)
	}
	defer unlock()

	order, err := c.convert(ctx, customerID)
	c.metrics.Checkouts.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		log.WithError(err).Info("checkout rejected")
		return nil, err
	}

	// the order is durable; a failed clear leaves stale lines, never a lost order
	if err := c.carts.ClearItems(ctx, customerID); err != nil && !errors.Is(err, domain.ErrCartNotFound) {
		log.WithError(err).WithField("order_id", order.ID).Error("failed to clear cart after checkout")
	}

	log.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"total_amount": order.TotalAmount.StringFixed(2),
		"items":        len(order.Items),
	}).Info("order placed")
	return order, nil
}

func (c *Coordinator) convert(ctx context.Context, customerID string) (*domain.Order, error) {
	cart, err := c.carts.LoadCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !cart.HasAddresses() {
		return nil, domain.ErrAddressRequired
	}
	if len(cart.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	priced, total, err := c.repricer.Reprice(ctx, pricing.LinesFromCart(cart.Items))
	if err != nil {
		var lineErr *pricing.LineError
		if errors.As(err, &lineErr) {
			return nil, fmt.Errorf("%w: %w", domain.ErrCheckoutValidationFailed, err)
		}
		return nil, fmt.Errorf("reprice cart: %w", err)
	}

	order := &domain.Order{
		ID:                uuid.New(),
		CustomerID:        customerID,
		ShippingAddressID: cart.ShippingAddressID,
		BillingAddressID:  cart.BillingAddressID,
		Items:             pricing.OrderItems(priced),
		TotalAmount:       total,
		Currency:          domain.DefaultCurrency,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusPending,
	}
	if err := c.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.KindOf(err).String()
}
