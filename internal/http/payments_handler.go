package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type PaymentCoordinator interface {
	InitiatePayment(ctx context.Context, req payment.InitiateRequest) (*domain.Payment, error)
	GetPayment(ctx context.Context, customerID string, paymentID uuid.UUID) (*domain.Payment, error)
	ListPayments(ctx context.Context, customerID string, orderID uuid.UUID) ([]*domain.Payment, error)
	RefundPayment(ctx context.Context, customerID string, paymentID uuid.UUID) (*domain.Payment, error)
	StalePendingPayments(ctx context.Context, olderThan time.Duration) ([]*domain.Payment, error)
}

type PaymentsHandler struct {
	payments PaymentCoordinator
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewPaymentsHandler(payments PaymentCoordinator, timeout time.Duration, log logrus.FieldLogger) *PaymentsHandler {
	return &PaymentsHandler{
		payments: payments,
		timeout:  timeout,
		log:      log,
	}
}

type InitiatePaymentRequestDTO struct {
	PaymentMethod  domain.PaymentMethod `json:"payment_method"`
	Amount         decimal.Decimal      `json:"amount"`
	IdempotencyKey string               `json:"idempotency_key"`
}

// POST /api/v1/orders/{order_id}/payments
//
// A declined or timed out charge is still a 200: the body carries the FAILED payment.
func (h *PaymentsHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "order_id")
	if !ok {
		return
	}
	var req InitiatePaymentRequestDTO
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" {
		key = req.IdempotencyKey
	}

	p, err := h.payments.InitiatePayment(ctx, payment.InitiateRequest{
		OrderID:        orderID,
		CustomerID:     customerIDFromContext(r.Context()),
		PaymentMethod:  req.PaymentMethod,
		Amount:         req.Amount,
		IdempotencyKey: key,
	})
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// GET /api/v1/orders/{order_id}/payments
func (h *PaymentsHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := uuidParam(w, r, "order_id")
	if !ok {
		return
	}

	payments, err := h.payments.ListPayments(ctx, customerIDFromContext(r.Context()), orderID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	respondJSON(w, http.StatusOK, payments)
}

// GET /api/v1/payments/{payment_id}
func (h *PaymentsHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	paymentID, ok := uuidParam(w, r, "payment_id")
	if !ok {
		return
	}

	p, err := h.payments.GetPayment(ctx, customerIDFromContext(r.Context()), paymentID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// POST /api/v1/payments/{payment_id}/refund
func (h *PaymentsHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	paymentID, ok := uuidParam(w, r, "payment_id")
	if !ok {
		return
	}

	p, err := h.payments.RefundPayment(ctx, customerIDFromContext(r.Context()), paymentID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// GET /api/v1/admin/payments/stale?older_than=15m
func (h *PaymentsHandler) StalePayments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	olderThan := 15 * time.Minute
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_older_than", "older_than must be a positive duration")
			return
		}
		olderThan = d
	}

	payments, err := h.payments.StalePendingPayments(ctx, olderThan)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}
	respondJSON(w, http.StatusOK, payments)
}
