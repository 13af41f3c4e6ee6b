package domain

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places money is stored with.
const MoneyScale = 2

// Pricing is the catalog's answer for a product (and optional variant) at a given instant.
type Pricing struct {
	ProductID        int64
	VariantID        int64
	Name             string
	SKU              string
	Price            decimal.Decimal
	AvailableStock   int
	InventoryTracked bool
	Active           bool
}

func (p Pricing) Covers(quantity int) bool {
	return !p.InventoryTracked || quantity <= p.AvailableStock
}
