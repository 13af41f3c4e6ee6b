package payment

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RefundPayment refunds a COMPLETED payment once. A gateway error is returned and the payment
// stays COMPLETED.
func (c *Coordinator) RefundPayment(ctx context.Context, customerID string, paymentID uuid.UUID) (*domain.Payment, error) {
	p, err := c.refund(ctx, customerID, paymentID)
	result := "ok"
	if err != nil {
		result = domain.KindOf(err).String()
	}
	c.metrics.Refunds.WithLabelValues(result).Inc()
	return p, err
}

func (c *Coordinator) refund(ctx context.Context, customerID string, paymentID uuid.UUID) (*domain.Payment, error) {
	unlock, err := c.locker.Lock(ctx, "refund:"+paymentID.String())
	if err != nil {
		return nil, fmt.Errorf("acquire refund lock: %w", err)
	}
	defer unlock()

	p, err := c.GetPayment(ctx, customerID, paymentID)
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case domain.PaymentStatusRefunded:
		return nil, domain.ErrPaymentAlreadyRefunded
	case domain.PaymentStatusCompleted:
	default:
		return nil, fmt.Errorf("%w: payment is %s", domain.ErrPaymentNotRefundable, p.Status)
	}

	log := c.log.WithFields(logrus.Fields{"payment_id": p.ID, "order_id": p.OrderID})

	gwCtx, cancel := context.WithTimeout(ctx, c.timeouts.Gateway)
	start := c.now()
	resp, gwErr := c.gateway.Refund(gwCtx, p)
	cancel()
	c.observeGateway("refund", start, gwErr)
	if gwErr != nil {
		log.WithError(gwErr).Warn("refund rejected by gateway")
		return nil, fmt.Errorf("%w: refund: %w", domain.ErrGateway, gwErr)
	}

	finalCtx, cancelFinal := context.WithTimeout(context.WithoutCancel(ctx), c.timeouts.Finalize)
	defer cancelFinal()

	refunded, err := c.payments.RefundPayment(finalCtx, p.ID, resp)
	if err != nil {
		log.WithError(err).Error("gateway refunded but payment not recorded")
		return nil, fmt.Errorf("record refund: %w", err)
	}
	log.Info("payment refunded")
	return refunded, nil
}
