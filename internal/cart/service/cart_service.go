package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/cart/cache"
	"github.com/fjod/go_cart/internal/cart/repository"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/lock"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// AddressBook is the external address collaborator. Addresses are referenced, never owned.
type AddressBook interface {
	AddressExists(ctx context.Context, customerID, addressID string) (bool, error)
}

type CartService struct {
	repo      repository.CartRepository
	cache     cache.CartCache
	addresses AddressBook
	pricing   *pricing.Repricer
	locker    lock.Locker
	log       logrus.FieldLogger
	sfg       singleflight.Group // Prevents cache stampede
}

func NewCartService(
	repo repository.CartRepository,
	cache cache.CartCache,
	addresses AddressBook,
	repricer *pricing.Repricer,
	locker lock.Locker,
	log logrus.FieldLogger,
) *CartService {
	return &CartService{
		repo:      repo,
		cache:     cache,
		addresses: addresses,
		pricing:   repricer,
		locker:    locker,
		log:       log,
	}
}

// GetCart returns the customer's cart, or an empty one if none exists yet.
func (s *CartService) GetCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(customerID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, customerID)
		if err == nil {
			return cart, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WithError(err).Warn("cache get error")
		}

		cart, errGet := s.repo.GetCart(ctx, customerID)
		if errors.Is(errGet, domain.ErrCartNotFound) {
			now := time.Now()
			return &domain.Cart{
				CustomerID: customerID,
				Items:      []domain.CartItem{},
				CreatedAt:  now,
				UpdatedAt:  now,
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), customerID, cart); errSet != nil {
				s.log.WithError(errSet).Warn("cache set error")
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// LoadCart reads the cart from the store, bypassing the cache. Missing carts are an error.
// The caller holds lock.CustomerKey(customerID).
func (s *CartService) LoadCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	return s.repo.GetCart(ctx, customerID)
}

// AddItem validates the prospective line quantity against live pricing and stock, then merges
// into the existing line for the same product/variant or appends a new one.
func (s *CartService) AddItem(ctx context.Context, customerID string, productID, variantID int64, quantity int) (*domain.Cart, error) {
	if !domain.ValidQuantity(quantity) {
		return nil, domain.ErrInvalidQuantity
	}

	unlock, err := s.lockCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := s.currentCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	item := domain.CartItem{
		ID:        uuid.NewString(),
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
	}
	if idx, ok := cart.FindLine(productID, variantID); ok {
		item.ID = cart.Items[idx].ID
		item.Quantity += cart.Items[idx].Quantity
	}
	if !domain.ValidQuantity(item.Quantity) {
		return nil, domain.ErrInvalidQuantity
	}

	p, err := s.pricing.Quote(ctx, pricing.Line{ProductID: productID, VariantID: variantID, Quantity: item.Quantity})
	if err != nil {
		return nil, err
	}
	item.Stamp(p)

	if err := s.repo.AddItem(ctx, customerID, item); err != nil {
		s.log.WithError(err).WithField("customer_id", customerID).Error("repo add item error")
		return nil, err
	}

	return s.afterWrite(ctx, customerID)
}

func (s *CartService) UpdateItemQuantity(ctx context.Context, customerID, itemID string, quantity int) (*domain.Cart, error) {
	if !domain.ValidQuantity(quantity) {
		return nil, domain.ErrInvalidQuantity
	}

	unlock, err := s.lockCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cart, err := s.repo.GetCart(ctx, customerID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}

	idx, ok := cart.FindItem(itemID)
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	item := cart.Items[idx]
	item.Quantity = quantity

	p, err := s.pricing.Quote(ctx, pricing.Line{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: quantity})
	if err != nil {
		return nil, err
	}
	item.Stamp(p)

	if err := s.repo.UpdateItem(ctx, customerID, item); err != nil {
		s.log.WithError(err).WithField("customer_id", customerID).Error("repo update item error")
		return nil, err
	}

	return s.afterWrite(ctx, customerID)
}

func (s *CartService) RemoveItem(ctx context.Context, customerID, itemID string) (*domain.Cart, error) {
	unlock, err := s.lockCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.repo.RemoveItem(ctx, customerID, itemID); err != nil {
		return nil, err
	}

	return s.afterWrite(ctx, customerID)
}

func (s *CartService) SetShippingAddress(ctx context.Context, customerID, addressID string) (*domain.Cart, error) {
	if err := s.checkAddress(ctx, customerID, addressID); err != nil {
		return nil, err
	}
	unlock, err := s.lockCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.repo.SetShippingAddress(ctx, customerID, addressID); err != nil {
		return nil, err
	}
	return s.afterWrite(ctx, customerID)
}

func (s *CartService) SetBillingAddress(ctx context.Context, customerID, addressID string) (*domain.Cart, error) {
	if err := s.checkAddress(ctx, customerID, addressID); err != nil {
		return nil, err
	}
	unlock, err := s.lockCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.repo.SetBillingAddress(ctx, customerID, addressID); err != nil {
		return nil, err
	}
	return s.afterWrite(ctx, customerID)
}

// ClearItems empties the cart but keeps the cart itself and its addresses. The caller holds
// lock.CustomerKey(customerID).
func (s *CartService) ClearItems(ctx context.Context, customerID string) error {
	if err := s.repo.ClearItems(ctx, customerID); err != nil {
		return err
	}

	invalidateCache(s, customerID)
	return nil
}

func (s *CartService) checkAddress(ctx context.Context, customerID, addressID string) error {
	if addressID == "" {
		return domain.ErrAddressNotFound
	}
	ok, err := s.addresses.AddressExists(ctx, customerID, addressID)
	if err != nil {
		return fmt.Errorf("failed to verify address: %w", err)
	}
	if !ok {
		return domain.ErrAddressNotFound
	}
	return nil
}

func (s *CartService) lockCart(ctx context.Context, customerID string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, lock.CustomerKey(customerID))
	if err != nil {
		return nil, fmt.Errorf("acquire cart lock: %w", err)
	}
	return unlock, nil
}

// currentCart returns the stored cart or an empty one, skipping the cache.
func (s *CartService) currentCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, customerID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return &domain.Cart{CustomerID: customerID}, nil
	}
	return cart, err
}

func (s *CartService) afterWrite(ctx context.Context, customerID string) (*domain.Cart, error) {
	invalidateCache(s, customerID)
	return s.repo.GetCart(ctx, customerID)
}

func invalidateCache(s *CartService, customerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, customerID); err != nil {
		s.log.WithError(err).WithField("customer_id", customerID).Warn("cache invalidate error")
	}
}
