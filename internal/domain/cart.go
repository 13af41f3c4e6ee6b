package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const MaxLineQuantity = 99

// Cart is the mutable basket of one customer. Guest carts use the guest cart id as CustomerID.
type Cart struct {
	CustomerID        string     `json:"customer_id"`
	Items             []CartItem `json:"items"`
	ShippingAddressID string     `json:"shipping_address_id,omitempty"`
	BillingAddressID  string     `json:"billing_address_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CartItem keeps a snapshot of name/sku/price taken on the last mutation. The snapshot is for
// display only and is never trusted at checkout.
type CartItem struct {
	ID        string          `json:"id"`
	ProductID int64           `json:"product_id"`
	VariantID int64           `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	AddedAt   time.Time       `json:"added_at"`
}

// Stamp copies the oracle's current view of the product onto the line.
func (i *CartItem) Stamp(p *Pricing) {
	i.UnitPrice = p.Price
	i.Name = p.Name
	i.SKU = p.SKU
}

func (c *Cart) FindItem(itemID string) (int, bool) {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i, true
		}
	}
	return -1, false
}

func (c *Cart) FindLine(productID, variantID int64) (int, bool) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].VariantID == variantID {
			return i, true
		}
	}
	return -1, false
}

// Subtotal sums the snapshot prices. It is what the customer sees, not what will be charged.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (c *Cart) HasAddresses() bool {
	return c.ShippingAddressID != "" && c.BillingAddressID != ""
}

func ValidQuantity(quantity int) bool {
	return quantity >= 1 && quantity <= MaxLineQuantity
}
