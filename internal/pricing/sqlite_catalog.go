package pricing

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteCatalog is the catalog-backed Oracle. Prices are stored as decimal text.
type SQLiteCatalog struct {
	db *sql.DB
}

func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func (c *SQLiteCatalog) RunMigrations() error {
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (c *SQLiteCatalog) GetPricing(ctx context.Context, productID, variantID int64) (*domain.Pricing, error) {
	query := `
		SELECT id, name, sku, price, active, inventory_tracked, stock
		FROM products
		WHERE id = ?
	`

	p := &domain.Pricing{}
	err := c.db.QueryRowContext(ctx, query, productID).Scan(
		&p.ProductID,
		&p.Name,
		&p.SKU,
		&p.Price,
		&p.Active,
		&p.InventoryTracked,
		&p.AvailableStock,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	if variantID == 0 {
		return p, nil
	}

	var (
		name, sku string
		price     sql.NullString
		active    bool
		stock     int
	)
	err = c.db.QueryRowContext(ctx, `
		SELECT name, sku, price, active, stock
		FROM product_variants
		WHERE product_id = ? AND id = ?
	`, productID, variantID).Scan(&name, &sku, &price, &active, &stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrVariantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query variant: %w", err)
	}

	p.VariantID = variantID
	p.Name = fmt.Sprintf("%s (%s)", p.Name, name)
	p.SKU = sku
	p.Active = p.Active && active
	p.AvailableStock = stock
	if price.Valid {
		override, err := decimal.NewFromString(price.String)
		if err != nil {
			return nil, fmt.Errorf("invalid variant price %q: %w", price.String, err)
		}
		p.Price = override
	}
	return p, nil
}

func (c *SQLiteCatalog) HasStock(ctx context.Context, productID, variantID int64, quantity int) (bool, error) {
	p, err := c.GetPricing(ctx, productID, variantID)
	if err != nil {
		return false, err
	}
	return p.Covers(quantity), nil
}

// UpsertProduct writes a product row. Used for seeding and by catalog maintenance tooling.
func (c *SQLiteCatalog) UpsertProduct(ctx context.Context, p domain.Pricing) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO products (id, name, sku, price, active, inventory_tracked, stock)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			sku = excluded.sku,
			price = excluded.price,
			active = excluded.active,
			inventory_tracked = excluded.inventory_tracked,
			stock = excluded.stock,
			updated_at = CURRENT_TIMESTAMP
	`, p.ProductID, p.Name, p.SKU, p.Price.String(), p.Active, p.InventoryTracked, p.AvailableStock)
	if err != nil {
		return fmt.Errorf("failed to upsert product %d: %w", p.ProductID, err)
	}
	return nil
}

// UpsertVariant writes a variant row. A zero price keeps the parent product price.
func (c *SQLiteCatalog) UpsertVariant(ctx context.Context, p domain.Pricing) error {
	var price sql.NullString
	if !p.Price.IsZero() {
		price = sql.NullString{String: p.Price.String(), Valid: true}
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO product_variants (id, product_id, name, sku, price, active, stock)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id, id) DO UPDATE SET
			name = excluded.name,
			sku = excluded.sku,
			price = excluded.price,
			active = excluded.active,
			stock = excluded.stock
	`, p.VariantID, p.ProductID, p.Name, p.SKU, price, p.Active, p.AvailableStock)
	if err != nil {
		return fmt.Errorf("failed to upsert variant %d/%d: %w", p.ProductID, p.VariantID, err)
	}
	return nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
