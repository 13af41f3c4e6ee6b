package repository

import (
	"context"

	"github.com/fjod/go_cart/internal/domain"
)

// CartRepository defines the interface for cart data operations
// Consumers define this interface, not the MongoDB implementation
type CartRepository interface {
	GetCart(ctx context.Context, customerID string) (*domain.Cart, error)
	// AddItem replaces the line with the same product/variant or appends a new one.
	// The cart document is created when missing.
	AddItem(ctx context.Context, customerID string, item domain.CartItem) error
	UpdateItem(ctx context.Context, customerID string, item domain.CartItem) error
	RemoveItem(ctx context.Context, customerID string, itemID string) error
	SetShippingAddress(ctx context.Context, customerID, addressID string) error
	SetBillingAddress(ctx context.Context, customerID, addressID string) error
	ClearItems(ctx context.Context, customerID string) error
	DeleteCart(ctx context.Context, customerID string) error
}
