package checkout

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/lock"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// mockCartStore implements CartStore over an in-memory map
type mockCartStore struct {
	mu         sync.Mutex
	carts      map[string]*domain.Cart
	loadErr    error
	clearErr   error
	clearCalls int
}

func (m *mockCartStore) LoadCart(_ context.Context, customerID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	cart, ok := m.carts[customerID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	copied := *cart
	copied.Items = append([]domain.CartItem(nil), cart.Items...)
	return &copied, nil
}

func (m *mockCartStore) ClearItems(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	if m.clearErr != nil {
		return m.clearErr
	}
	cart, ok := m.carts[customerID]
	if !ok {
		return domain.ErrCartNotFound
	}
	cart.Items = nil
	return nil
}

func (m *mockCartStore) addLine(customerID string, item domain.CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := m.carts[customerID]
	cart.Items = append(cart.Items, item)
}

func (m *mockCartStore) items(customerID string) []domain.CartItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[customerID].Items
}

// mockOrderStore records created orders
type mockOrderStore struct {
	mu        sync.Mutex
	orders    []*domain.Order
	createErr error
	onCreate  func()
}

func (m *mockOrderStore) CreateOrder(_ context.Context, order *domain.Order) error {
	if m.onCreate != nil {
		m.onCreate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.orders = append(m.orders, order)
	return nil
}

func (m *mockOrderStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func testCatalog() *pricing.MemoryCatalog {
	c := pricing.NewMemoryCatalog()
	c.SetProduct(domain.Pricing{
		ProductID: 1, Name: "Laptop", SKU: "LAP", Price: decimal.RequireFromString("50.00"),
		AvailableStock: 5, InventoryTracked: true, Active: true,
	})
	c.SetProduct(domain.Pricing{
		ProductID: 2, Name: "Mouse", SKU: "MOU", Price: decimal.RequireFromString("10.00"),
		AvailableStock: 100, InventoryTracked: true, Active: true,
	})
	return c
}

func cartWith(customerID string, items ...domain.CartItem) *domain.Cart {
	return &domain.Cart{
		CustomerID:        customerID,
		Items:             items,
		ShippingAddressID: "addr-ship",
		BillingAddressID:  "addr-bill",
	}
}

func line(productID int64, qty int, snapshotPrice string) domain.CartItem {
	return domain.CartItem{
		ID:        "item-" + snapshotPrice,
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString(snapshotPrice),
	}
}

type fixture struct {
	coord   *Coordinator
	carts   *mockCartStore
	orders  *mockOrderStore
	catalog *pricing.MemoryCatalog
	locker  *lock.KeyedMutex
	metrics *metrics.Metrics
}

func newFixture(carts ...*domain.Cart) *fixture {
	store := &mockCartStore{carts: map[string]*domain.Cart{}}
	for _, c := range carts {
		store.carts[c.CustomerID] = c
	}
	orders := &mockOrderStore{}
	catalog := testCatalog()
	m := metrics.NewNop()

	log := logrus.New()
	log.SetOutput(io.Discard)

	locker := lock.NewKeyedMutex()
	coord := NewCoordinator(store, orders, pricing.NewRepricer(catalog, time.Second), locker, m, log)
	return &fixture{coord: coord, carts: store, orders: orders, catalog: catalog, locker: locker, metrics: m}
}
