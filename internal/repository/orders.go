package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, customer_id, shipping_address_id, billing_address_id, items, total_amount,
	currency, status, payment_status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var itemsJSON []byte
	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.ShippingAddressID,
		&order.BillingAddressID,
		&itemsJSON,
		&order.TotalAmount,
		&order.Currency,
		&order.Status,
		&order.PaymentStatus,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &order, nil
}

// CreateOrder stores the order and its order.created event in one transaction.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO orders (id, customer_id, shipping_address_id, billing_address_id, items, total_amount,
			                     currency, status, payment_status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			 RETURNING created_at, updated_at`,
			order.ID,
			order.CustomerID,
			order.ShippingAddressID,
			order.BillingAddressID,
			itemsJSON,
			order.TotalAmount,
			order.Currency,
			order.Status,
			order.PaymentStatus,
		).Scan(&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		return insertEvent(ctx, tx, AggregateOrder, order.ID.String(), EventOrderCreated, order)
	})
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query orders by customer id: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

// UpdateOrderPricing rewrites items and total together so the total keeps matching the line totals.
func (r *Repository) UpdateOrderPricing(ctx context.Context, orderID uuid.UUID, items []domain.OrderItem, total decimal.Decimal) error {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE orders SET items = $2, total_amount = $3, updated_at = NOW() WHERE id = $1`,
			orderID, itemsJSON, total)
		if err != nil {
			return fmt.Errorf("update order pricing: %w", err)
		}
		if err := expectOneRow(res, domain.ErrOrderNotFound); err != nil {
			return err
		}

		return insertEvent(ctx, tx, AggregateOrder, orderID.String(), EventOrderRepriced, map[string]any{
			"order_id":     orderID,
			"items":        items,
			"total_amount": total,
		})
	})
}

// UpdateOrderStatus applies from -> to only if the row still holds from. A row that moved on
// in the meantime yields ErrInvalidTransition.
func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus) (time.Time, error) {
	var updatedAt time.Time
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`UPDATE orders SET status = $3, updated_at = NOW()
			 WHERE id = $1 AND status = $2
			 RETURNING updated_at`,
			orderID, from, to).Scan(&updatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return r.missingOrConflict(ctx, tx, orderID, from, to)
		}
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		return insertEvent(ctx, tx, AggregateOrder, orderID.String(), EventOrderStatusChanged, map[string]any{
			"order_id":    orderID,
			"from_status": from,
			"to_status":   to,
		})
	})
	return updatedAt, err
}

func (r *Repository) missingOrConflict(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, from, to domain.OrderStatus) error {
	var current domain.OrderStatus
	err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("query order status: %w", err)
	}
	return fmt.Errorf("%w: order is %s, expected %s for %s", domain.ErrInvalidTransition, current, from, to)
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
