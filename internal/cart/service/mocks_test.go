package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/fjod/go_cart/internal/cart/cache"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/lock"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type mockRepository struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
	adds  int
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: make(map[string]*domain.Cart)}
}

func (m *mockRepository) put(cart *domain.Cart) {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[cart.CustomerID] = cart
}

func (m *mockRepository) GetCart(_ context.Context, customerID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[customerID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	cp := *cart
	cp.Items = append([]domain.CartItem{}, cart.Items...)
	return &cp, nil
}

func (m *mockRepository) ensure(customerID string) *domain.Cart {
	cart, ok := m.carts[customerID]
	if !ok {
		cart = &domain.Cart{CustomerID: customerID, Items: []domain.CartItem{}, CreatedAt: time.Now()}
		m.carts[customerID] = cart
	}
	return cart
}

func (m *mockRepository) AddItem(_ context.Context, customerID string, item domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.adds++
	cart := m.ensure(customerID)
	if idx, ok := cart.FindLine(item.ProductID, item.VariantID); ok {
		cart.Items[idx] = item
		return nil
	}
	cart.Items = append(cart.Items, item)
	return nil
}

func (m *mockRepository) UpdateItem(_ context.Context, customerID string, item domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[customerID]
	if !ok {
		return domain.ErrItemNotFound
	}
	idx, ok := cart.FindItem(item.ID)
	if !ok {
		return domain.ErrItemNotFound
	}
	cart.Items[idx] = item
	return nil
}

func (m *mockRepository) RemoveItem(_ context.Context, customerID string, itemID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[customerID]
	if !ok {
		return domain.ErrItemNotFound
	}
	idx, ok := cart.FindItem(itemID)
	if !ok {
		return domain.ErrItemNotFound
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	return nil
}

func (m *mockRepository) SetShippingAddress(_ context.Context, customerID, addressID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.ensure(customerID).ShippingAddressID = addressID
	return m.err
}

func (m *mockRepository) SetBillingAddress(_ context.Context, customerID, addressID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.ensure(customerID).BillingAddressID = addressID
	return m.err
}

func (m *mockRepository) ClearItems(_ context.Context, customerID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[customerID]
	if !ok {
		return domain.ErrCartNotFound
	}
	cart.Items = []domain.CartItem{}
	return nil
}

func (m *mockRepository) DeleteCart(_ context.Context, customerID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.carts[customerID]; !ok {
		return domain.ErrCartNotFound
	}
	delete(m.carts, customerID)
	return nil
}

type mockCache struct {
	m       sync.RWMutex
	carts   map[string]*domain.Cart
	err     error
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, customerID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[customerID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (m *mockCache) Set(_ context.Context, customerID string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[customerID] = cart
	return m.err
}

func (m *mockCache) Delete(_ context.Context, customerID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.deletes++
	delete(m.carts, customerID)
	return m.err
}

func (m *mockCache) getCart(customerID string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[customerID]
}

type mockAddressBook struct {
	addresses map[string]string // addressID -> customerID
}

func (m mockAddressBook) AddressExists(_ context.Context, customerID, addressID string) (bool, error) {
	return m.addresses[addressID] == customerID, nil
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
	c.SetProduct(domain.Pricing{
		ProductID: 2, VariantID: 7, Name: "Mouse (black)", SKU: "MOU-B", Price: decimal.RequireFromString("12.00"),
		AvailableStock: 2, Active: true,
	})
	return c
}

func (m *mockRepository) addCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.adds
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	svc     *CartService
	repo    *mockRepository
	cache   *mockCache
	catalog *pricing.MemoryCatalog
	locker  *lock.KeyedMutex
}

func newFixture(log logrus.FieldLogger) *fixture {
	repo := newMockRepository()
	c := newMockCache()
	catalog := testCatalog()
	addresses := mockAddressBook{addresses: map[string]string{"addr-1": "user1", "addr-2": "user1"}}
	locker := lock.NewKeyedMutex()
	svc := NewCartService(repo, c, addresses, pricing.NewRepricer(catalog, time.Second), locker, log)
	return &fixture{svc: svc, repo: repo, cache: c, catalog: catalog, locker: locker}
}
