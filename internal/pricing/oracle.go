package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
)

// Oracle is the catalog/inventory source of truth for price and stock.
// GetPricing returns domain.ErrProductNotFound for unknown products and domain.ErrVariantNotFound
// when a variant is requested that the product does not have. Inactive products are returned
// with Active=false.
type Oracle interface {
	GetPricing(ctx context.Context, productID, variantID int64) (*domain.Pricing, error)
	HasStock(ctx context.Context, productID, variantID int64, quantity int) (bool, error)
}

// LineError names the product line that failed validation.
type LineError struct {
	ProductID int64
	VariantID int64
	Quantity  int
	Err       error
}

func (e *LineError) Error() string {
	if e.VariantID != 0 {
		return fmt.Sprintf("product %d variant %d (qty %d): %v", e.ProductID, e.VariantID, e.Quantity, e.Err)
	}
	return fmt.Sprintf("product %d (qty %d): %v", e.ProductID, e.Quantity, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

type Line struct {
	ProductID int64
	VariantID int64
	Quantity  int
}

type PricedLine struct {
	Line
	Pricing   domain.Pricing
	LineTotal decimal.Decimal
}

func (pl PricedLine) OrderItem() domain.OrderItem {
	return domain.OrderItem{
		ProductID:   pl.ProductID,
		VariantID:   pl.VariantID,
		ProductName: pl.Pricing.Name,
		SKU:         pl.Pricing.SKU,
		Quantity:    pl.Quantity,
		UnitPrice:   pl.Pricing.Price,
		LineTotal:   pl.LineTotal,
	}
}

// Repricer asks the oracle for live data at every trust boundary. Nothing is cached between calls.
type Repricer struct {
	oracle  Oracle
	timeout time.Duration
}

func NewRepricer(oracle Oracle, timeout time.Duration) *Repricer {
	return &Repricer{
		oracle:  oracle,
		timeout: timeout,
	}
}

// Quote fetches live pricing for one line and checks the quantity can be sold right now.
// The returned price is rounded to domain.MoneyScale so line totals match what the order tables store.
func (r *Repricer) Quote(ctx context.Context, line Line) (*domain.Pricing, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	p, err := r.oracle.GetPricing(ctx, line.ProductID, line.VariantID)
	if errors.Is(err, domain.ErrProductNotFound) {
		return nil, lineError(line, domain.ErrProductUnavailable)
	}
	if errors.Is(err, domain.ErrVariantNotFound) {
		return nil, lineError(line, domain.ErrVariantNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pricing for product %d: %w", line.ProductID, err)
	}
	if !p.Active {
		return nil, lineError(line, domain.ErrProductUnavailable)
	}
	rounded := *p
	rounded.Price = p.Price.Round(domain.MoneyScale)
	p = &rounded

	inStock, err := r.oracle.HasStock(ctx, line.ProductID, line.VariantID, line.Quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to check stock for product %d: %w", line.ProductID, err)
	}
	if !inStock {
		return nil, lineError(line, domain.ErrInsufficientStock)
	}
	return p, nil
}

// Reprice validates every line against the oracle and recomputes line totals and their sum.
// It stops at the first violation; no partial result is returned.
func (r *Repricer) Reprice(ctx context.Context, lines []Line) ([]PricedLine, decimal.Decimal, error) {
	priced := make([]PricedLine, 0, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		p, err := r.Quote(ctx, line)
		if err != nil {
			return nil, decimal.Zero, err
		}
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		priced = append(priced, PricedLine{
			Line:      line,
			Pricing:   *p,
			LineTotal: lineTotal,
		})
		total = total.Add(lineTotal)
	}

	return priced, total, nil
}

func lineError(line Line, err error) *LineError {
	return &LineError{
		ProductID: line.ProductID,
		VariantID: line.VariantID,
		Quantity:  line.Quantity,
		Err:       err,
	}
}

func LinesFromCart(items []domain.CartItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity})
	}
	return lines
}

func LinesFromOrder(items []domain.OrderItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity})
	}
	return lines
}

func OrderItems(lines []PricedLine) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, line.OrderItem())
	}
	return items
}
