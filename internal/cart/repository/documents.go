package repository

import (
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type cartDocument struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	CustomerID        string             `bson:"customer_id"`
	Items             []itemDocument     `bson:"items"`
	ShippingAddressID string             `bson:"shipping_address_id,omitempty"`
	BillingAddressID  string             `bson:"billing_address_id,omitempty"`
	CreatedAt         time.Time          `bson:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at"`
}

// itemDocument stores money as Decimal128 so prices survive the round trip exactly.
type itemDocument struct {
	ID        string               `bson:"id"`
	ProductID int64                `bson:"product_id"`
	VariantID int64                `bson:"variant_id"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
	Name      string               `bson:"name"`
	SKU       string               `bson:"sku"`
	AddedAt   time.Time            `bson:"added_at"`
}

func toItemDocument(item domain.CartItem) (itemDocument, error) {
	price, err := primitive.ParseDecimal128(item.UnitPrice.String())
	if err != nil {
		return itemDocument{}, fmt.Errorf("failed to encode price %s: %w", item.UnitPrice, err)
	}
	return itemDocument{
		ID:        item.ID,
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Quantity:  item.Quantity,
		UnitPrice: price,
		Name:      item.Name,
		SKU:       item.SKU,
		AddedAt:   item.AddedAt,
	}, nil
}

func (d cartDocument) toDomain() (*domain.Cart, error) {
	cart := &domain.Cart{
		CustomerID:        d.CustomerID,
		Items:             make([]domain.CartItem, 0, len(d.Items)),
		ShippingAddressID: d.ShippingAddressID,
		BillingAddressID:  d.BillingAddressID,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	for _, item := range d.Items {
		price, err := decimal.NewFromString(item.UnitPrice.String())
		if err != nil {
			return nil, fmt.Errorf("failed to decode price of item %s: %w", item.ID, err)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: price,
			Name:      item.Name,
			SKU:       item.SKU,
			AddedAt:   item.AddedAt,
		})
	}
	return cart, nil
}
