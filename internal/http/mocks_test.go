package http

import (
	"context"
	"io"
	"time"

	"github.com/fjod/go_cart/internal/cart/service"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/payment"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// --- Mocks ---

type mockCartService struct {
	cart        *domain.Cart
	merge       *service.MergeResult
	err         error
	lastCust    string
	lastItem    string
	lastAddress string
	lastQty     int
}

func (m *mockCartService) GetCart(_ context.Context, customerID string) (*domain.Cart, error) {
	m.lastCust = customerID
	return m.cart, m.err
}

func (m *mockCartService) AddItem(_ context.Context, customerID string, _, _ int64, quantity int) (*domain.Cart, error) {
	m.lastCust = customerID
	m.lastQty = quantity
	return m.cart, m.err
}

func (m *mockCartService) UpdateItemQuantity(_ context.Context, customerID, itemID string, quantity int) (*domain.Cart, error) {
	m.lastCust, m.lastItem, m.lastQty = customerID, itemID, quantity
	return m.cart, m.err
}

func (m *mockCartService) RemoveItem(_ context.Context, customerID, itemID string) (*domain.Cart, error) {
	m.lastCust, m.lastItem = customerID, itemID
	return m.cart, m.err
}

func (m *mockCartService) SetShippingAddress(_ context.Context, customerID, addressID string) (*domain.Cart, error) {
	m.lastCust, m.lastAddress = customerID, addressID
	return m.cart, m.err
}

func (m *mockCartService) SetBillingAddress(_ context.Context, customerID, addressID string) (*domain.Cart, error) {
	m.lastCust, m.lastAddress = customerID, addressID
	return m.cart, m.err
}

func (m *mockCartService) MergeGuestCart(_ context.Context, _, customerID string) (*service.MergeResult, error) {
	m.lastCust = customerID
	return m.merge, m.err
}

type mockCheckout struct {
	order *domain.Order
	err   error
}

func (m *mockCheckout) ConvertCartToOrder(context.Context, string) (*domain.Order, error) {
	return m.order, m.err
}

type mockOrderService struct {
	order      *domain.Order
	orders     []*domain.Order
	err        error
	lastStatus domain.OrderStatus
}

func (m *mockOrderService) GetOrder(context.Context, string, uuid.UUID) (*domain.Order, error) {
	return m.order, m.err
}

func (m *mockOrderService) ListOrders(context.Context, string) ([]*domain.Order, error) {
	return m.orders, m.err
}

func (m *mockOrderService) CancelOrder(context.Context, string, uuid.UUID) (*domain.Order, error) {
	return m.order, m.err
}

func (m *mockOrderService) UpdateOrderStatus(_ context.Context, _ uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	m.lastStatus = status
	return m.order, m.err
}

type mockPayments struct {
	payment       *domain.Payment
	payments      []*domain.Payment
	err           error
	lastRequest   payment.InitiateRequest
	lastOlderThan time.Duration
}

func (m *mockPayments) InitiatePayment(_ context.Context, req payment.InitiateRequest) (*domain.Payment, error) {
	m.lastRequest = req
	return m.payment, m.err
}

func (m *mockPayments) GetPayment(context.Context, string, uuid.UUID) (*domain.Payment, error) {
	return m.payment, m.err
}

func (m *mockPayments) ListPayments(context.Context, string, uuid.UUID) ([]*domain.Payment, error) {
	return m.payments, m.err
}

func (m *mockPayments) RefundPayment(context.Context, string, uuid.UUID) (*domain.Payment, error) {
	return m.payment, m.err
}

func (m *mockPayments) StalePendingPayments(_ context.Context, olderThan time.Duration) ([]*domain.Payment, error) {
	m.lastOlderThan = olderThan
	return m.payments, m.err
}

// --- helper ---

type fixture struct {
	carts    *mockCartService
	checkout *mockCheckout
	orders   *mockOrderService
	payments *mockPayments
	metrics  *metrics.Metrics
	router   chi.Router
}

func newFixture() *fixture {
	return newFixtureWithAdminToken(adminToken)
}

func newFixtureWithAdminToken(token string) *fixture {
	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		carts:    &mockCartService{},
		checkout: &mockCheckout{},
		orders:   &mockOrderService{},
		payments: &mockPayments{},
	}
	reg := prometheus.NewRegistry()
	f.metrics = metrics.New(reg, "test")

	timeout := 5 * time.Second
	f.router = NewRouter(Handlers{
		Cart:     NewCartHandler(f.carts, timeout, log),
		Checkout: NewCheckoutHandler(f.checkout, timeout, log),
		Orders:   NewOrdersHandler(f.orders, timeout, log),
		Payments: NewPaymentsHandler(f.payments, timeout, log),
	}, RouterConfig{
		Metrics:        f.metrics,
		Gatherer:       reg,
		RequestTimeout: timeout,
		Log:            log,
		AdminToken:     token,
	})
	return f
}
