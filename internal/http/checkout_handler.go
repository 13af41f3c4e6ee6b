package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/sirupsen/logrus"
)

type CheckoutCoordinator interface {
	ConvertCartToOrder(ctx context.Context, customerID string) (*domain.Order, error)
}

type CheckoutHandler struct {
	checkout CheckoutCoordinator
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewCheckoutHandler(checkout CheckoutCoordinator, timeout time.Duration, log logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
		log:      log,
	}
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.checkout.ConvertCartToOrder(ctx, customerIDFromContext(r.Context()))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
