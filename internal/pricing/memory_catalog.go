package pricing

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
)

type catalogKey struct {
	productID int64
	variantID int64
}

// MemoryCatalog implements Oracle with in-memory storage. Variants are stored under their own
// key and are only visible while the parent product exists.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[catalogKey]domain.Pricing
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		items: make(map[catalogKey]domain.Pricing),
	}
}

// SetProduct adds or replaces a product (p.VariantID == 0) or a variant.
func (c *MemoryCatalog) SetProduct(p domain.Pricing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[catalogKey{p.ProductID, p.VariantID}] = p
}

func (c *MemoryCatalog) SetPrice(productID, variantID int64, price decimal.Decimal) {
	c.update(productID, variantID, func(p *domain.Pricing) { p.Price = price })
}

func (c *MemoryCatalog) SetStock(productID, variantID int64, stock int) {
	c.update(productID, variantID, func(p *domain.Pricing) { p.AvailableStock = stock })
}

func (c *MemoryCatalog) SetActive(productID int64, active bool) {
	c.update(productID, 0, func(p *domain.Pricing) { p.Active = active })
}

func (c *MemoryCatalog) Remove(productID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if key.productID == productID {
			delete(c.items, key)
		}
	}
}

func (c *MemoryCatalog) update(productID, variantID int64, fn func(*domain.Pricing)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := catalogKey{productID, variantID}
	if p, ok := c.items[key]; ok {
		fn(&p)
		c.items[key] = p
	}
}

func (c *MemoryCatalog) GetPricing(_ context.Context, productID, variantID int64) (*domain.Pricing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	product, ok := c.items[catalogKey{productID, 0}]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	if variantID == 0 {
		return &product, nil
	}

	variant, ok := c.items[catalogKey{productID, variantID}]
	if !ok {
		return nil, domain.ErrVariantNotFound
	}
	variant.Active = variant.Active && product.Active
	variant.InventoryTracked = product.InventoryTracked
	return &variant, nil
}

func (c *MemoryCatalog) HasStock(ctx context.Context, productID, variantID int64, quantity int) (bool, error) {
	p, err := c.GetPricing(ctx, productID, variantID)
	if err != nil {
		return false, err
	}
	return p.Covers(quantity), nil
}
