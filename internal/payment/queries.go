package payment

import (
	"context"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/uuid"
)

// GetPayment reports ErrPaymentNotFound for payments on another customer's order.
func (c *Coordinator) GetPayment(ctx context.Context, customerID string, paymentID uuid.UUID) (*domain.Payment, error) {
	p, err := c.payments.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		return p, nil
	}

	order, err := c.orders.GetOrderByID(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, domain.ErrPaymentNotFound
	}
	return p, nil
}

func (c *Coordinator) ListPayments(ctx context.Context, customerID string, orderID uuid.UUID) ([]*domain.Payment, error) {
	order, err := c.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if customerID != "" && order.CustomerID != customerID {
		return nil, domain.ErrOrderNotFound
	}
	return c.payments.ListPaymentsByOrder(ctx, orderID)
}

// StalePendingPayments lists PENDING payments created more than olderThan ago. These are
// attempts whose terminal write never happened and need out-of-band reconciliation.
func (c *Coordinator) StalePendingPayments(ctx context.Context, olderThan time.Duration) ([]*domain.Payment, error) {
	return c.payments.ListStalePendingPayments(ctx, c.now().Add(-olderThan))
}
