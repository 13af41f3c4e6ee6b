package payment

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/lock"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var errNotPending = errors.New("payment is no longer pending")

// mockOrderStore implements OrderStore
type mockOrderStore struct {
	mu             sync.Mutex
	orders         map[uuid.UUID]*domain.Order
	pricingUpdates int
}

func (m *mockOrderStore) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	copied := *o
	copied.Items = append([]domain.OrderItem(nil), o.Items...)
	return &copied, nil
}

func (m *mockOrderStore) UpdateOrderPricing(_ context.Context, id uuid.UUID, items []domain.OrderItem, total decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Items = items
	o.TotalAmount = total
	m.pricingUpdates++
	return nil
}

func (m *mockOrderStore) setPaymentStatus(id uuid.UUID, s domain.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id].PaymentStatus = s
}

func (m *mockOrderStore) get(id uuid.UUID) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.orders[id]
}

// mockStore implements Store with the same uniqueness and status guards as the Postgres store.
// Terminal writes fail if their context is already done.
type mockStore struct {
	mu       sync.Mutex
	orders   *mockOrderStore
	payments map[uuid.UUID]*domain.Payment
	byKey    map[string]uuid.UUID

	hiddenKeyLookups int // GetPaymentByIdempotencyKey misses this many times
	createCalls      int
	completeErr      error
}

func newMockStore(orders *mockOrderStore) *mockStore {
	return &mockStore{
		orders:   orders,
		payments: map[uuid.UUID]*domain.Payment{},
		byKey:    map[string]uuid.UUID{},
	}
}

func (m *mockStore) CreatePayment(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if _, ok := m.byKey[p.IdempotencyKey]; ok {
		return domain.ErrDuplicateIdempotencyKey
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	copied := *p
	m.payments[p.ID] = &copied
	m.byKey[p.IdempotencyKey] = p.ID
	return nil
}

func (m *mockStore) GetPaymentByIdempotencyKey(_ context.Context, key string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hiddenKeyLookups > 0 {
		m.hiddenKeyLookups--
		return nil, domain.ErrPaymentNotFound
	}
	id, ok := m.byKey[key]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	copied := *m.payments[id]
	return &copied, nil
}

func (m *mockStore) GetPaymentByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockStore) ListPaymentsByOrder(_ context.Context, orderID uuid.UUID) ([]*domain.Payment, error) {
	return m.filter(func(p *domain.Payment) bool { return p.OrderID == orderID }), nil
}

func (m *mockStore) ListStalePendingPayments(_ context.Context, olderThan time.Time) ([]*domain.Payment, error) {
	return m.filter(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentStatusPending && p.CreatedAt.Before(olderThan)
	}), nil
}

func (m *mockStore) filter(keep func(*domain.Payment) bool) []*domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Payment{}
	for _, p := range m.payments {
		if keep(p) {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *mockStore) HasCompletedPayment(_ context.Context, orderID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrderID == orderID && (p.Status == domain.PaymentStatusCompleted || p.Status == domain.PaymentStatusRefunded) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) CompletePayment(ctx context.Context, id uuid.UUID, resp string) (*domain.Payment, error) {
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	p, err := m.transition(ctx, id, domain.PaymentStatusPending, domain.PaymentStatusCompleted, resp, "", errNotPending)
	if err != nil {
		return nil, err
	}
	m.orders.setPaymentStatus(p.OrderID, domain.PaymentStatusCompleted)
	return p, nil
}

func (m *mockStore) FailPayment(ctx context.Context, id uuid.UUID, reason, resp string) (*domain.Payment, error) {
	return m.transition(ctx, id, domain.PaymentStatusPending, domain.PaymentStatusFailed, resp, reason, errNotPending)
}

func (m *mockStore) RefundPayment(ctx context.Context, id uuid.UUID, resp string) (*domain.Payment, error) {
	p, err := m.transition(ctx, id, domain.PaymentStatusCompleted, domain.PaymentStatusRefunded, resp, "", domain.ErrPaymentNotRefundable)
	if err != nil {
		return nil, err
	}
	m.orders.setPaymentStatus(p.OrderID, domain.PaymentStatusRefunded)
	return p, nil
}

func (m *mockStore) transition(ctx context.Context, id uuid.UUID, from, to domain.PaymentStatus, resp, reason string, conflict error) (*domain.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	if p.Status != from {
		return nil, conflict
	}
	p.Status = to
	p.GatewayResponse = resp
	p.FailureReason = reason
	p.UpdatedAt = time.Now()
	copied := *p
	return &copied, nil
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

func (m *mockStore) status(id uuid.UUID) domain.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[id].Status
}

// mockGateway counts calls; delay is cut short by the context
type mockGateway struct {
	mu          sync.Mutex
	charges     int
	refunds     int
	chargeErr   error
	refundErr   error
	chargeDelay time.Duration
}

func (g *mockGateway) Charge(ctx context.Context, _ *domain.Payment) (string, error) {
	g.mu.Lock()
	g.charges++
	err, delay := g.chargeErr, g.chargeDelay
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return "APPROVED", nil
}

func (g *mockGateway) Refund(context.Context, *domain.Payment) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	if g.refundErr != nil {
		return "", g.refundErr
	}
	return "REFUNDED", nil
}

func (g *mockGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges
}

func testCatalog() *pricing.MemoryCatalog {
	c := pricing.NewMemoryCatalog()
	c.SetProduct(domain.Pricing{
		ProductID: 1, Name: "Laptop", SKU: "LAP", Price: decimal.RequireFromString("50.00"),
		AvailableStock: 5, InventoryTracked: true, Active: true,
	})
	return c
}

// placedOrder is the order checkout produces for two laptops at $50.
func placedOrder(customerID string) *domain.Order {
	return &domain.Order{
		ID:         uuid.New(),
		CustomerID: customerID,
		Items: []domain.OrderItem{{
			ProductID:   1,
			ProductName: "Laptop",
			SKU:         "LAP",
			Quantity:    2,
			UnitPrice:   decimal.RequireFromString("50.00"),
			LineTotal:   decimal.RequireFromString("100.00"),
		}},
		TotalAmount:   decimal.RequireFromString("100.00"),
		Currency:      domain.DefaultCurrency,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}
}

type fixture struct {
	coord   *Coordinator
	store   *mockStore
	orders  *mockOrderStore
	gateway *mockGateway
	catalog *pricing.MemoryCatalog
	order   *domain.Order
}

func newFixture() *fixture {
	order := placedOrder("user1")
	orders := &mockOrderStore{orders: map[uuid.UUID]*domain.Order{order.ID: order}}
	store := newMockStore(orders)
	gw := &mockGateway{}
	catalog := testCatalog()

	log := logrus.New()
	log.SetOutput(io.Discard)

	coord := NewCoordinator(
		store,
		orders,
		pricing.NewRepricer(catalog, time.Second),
		gw,
		lock.NewKeyedMutex(),
		Timeouts{Gateway: time.Second},
		metrics.NewNop(),
		log,
	)
	return &fixture{coord: coord, store: store, orders: orders, gateway: gw, catalog: catalog, order: order}
}

func (f *fixture) request(amount, key string) InitiateRequest {
	return InitiateRequest{
		OrderID:        f.order.ID,
		CustomerID:     "user1",
		PaymentMethod:  domain.PaymentMethodCreditCard,
		Amount:         decimal.RequireFromString(amount),
		IdempotencyKey: key,
	}
}
