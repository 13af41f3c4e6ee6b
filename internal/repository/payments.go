package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const paymentColumns = `id, order_id, idempotency_key, payment_method, amount, status, transaction_id,
	gateway_response, failure_reason, created_at, updated_at`

const uniqueViolation = "23505"

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.IdempotencyKey,
		&p.PaymentMethod,
		&p.Amount,
		&p.Status,
		&p.TransactionID,
		&p.GatewayResponse,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment inserts a new attempt. The unique index on idempotency_key makes concurrent
// duplicates fail with ErrDuplicateIdempotencyKey.
func (r *Repository) CreatePayment(ctx context.Context, p *domain.Payment) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO payments (id, order_id, idempotency_key, payment_method, amount, status, transaction_id,
		                       gateway_response, failure_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		p.ID,
		p.OrderID,
		p.IdempotencyKey,
		p.PaymentMethod,
		p.Amount,
		p.Status,
		p.TransactionID,
		p.GatewayResponse,
		p.FailureReason,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *Repository) GetPaymentByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment by idempotency key: %w", err)
	}
	return p, nil
}

func (r *Repository) GetPaymentByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment by id: %w", err)
	}
	return p, nil
}

func (r *Repository) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.Payment, error) {
	return r.queryPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at`, orderID)
}

// ListStalePendingPayments returns PENDING rows created before the cutoff, oldest first.
func (r *Repository) ListStalePendingPayments(ctx context.Context, olderThan time.Time) ([]*domain.Payment, error) {
	return r.queryPayments(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE status = $1 AND created_at < $2 ORDER BY created_at`,
		domain.PaymentStatusPending, olderThan)
}

func (r *Repository) queryPayments(ctx context.Context, query string, args ...any) ([]*domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	payments := []*domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return payments, nil
}

// HasCompletedPayment reports whether any attempt on the order ever completed. A refunded
// payment still counts.
func (r *Repository) HasCompletedPayment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE order_id = $1 AND status IN ($2, $3))`,
		orderID, domain.PaymentStatusCompleted, domain.PaymentStatusRefunded).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query completed payment: %w", err)
	}
	return exists, nil
}

// CompletePayment moves the payment to COMPLETED and the order's payment status with it.
func (r *Repository) CompletePayment(ctx context.Context, paymentID uuid.UUID, gatewayResponse string) (*domain.Payment, error) {
	var p *domain.Payment
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = transitionPayment(ctx, tx, paymentID, domain.PaymentStatusPending, domain.PaymentStatusCompleted,
			gatewayResponse, "", ErrPaymentNotPending)
		if err != nil {
			return err
		}
		if err := setOrderPaymentStatus(ctx, tx, p.OrderID, domain.PaymentStatusCompleted); err != nil {
			return err
		}
		return insertEvent(ctx, tx, AggregatePayment, p.ID.String(), EventPaymentCompleted, p)
	})
	return p, err
}

// FailPayment records a gateway failure. The order's payment status is left alone so the
// customer can retry with a new key.
func (r *Repository) FailPayment(ctx context.Context, paymentID uuid.UUID, reason, gatewayResponse string) (*domain.Payment, error) {
	var p *domain.Payment
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = transitionPayment(ctx, tx, paymentID, domain.PaymentStatusPending, domain.PaymentStatusFailed,
			gatewayResponse, reason, ErrPaymentNotPending)
		if err != nil {
			return err
		}
		return insertEvent(ctx, tx, AggregatePayment, p.ID.String(), EventPaymentFailed, p)
	})
	return p, err
}

func (r *Repository) RefundPayment(ctx context.Context, paymentID uuid.UUID, gatewayResponse string) (*domain.Payment, error) {
	var p *domain.Payment
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = transitionPayment(ctx, tx, paymentID, domain.PaymentStatusCompleted, domain.PaymentStatusRefunded,
			gatewayResponse, "", domain.ErrPaymentNotRefundable)
		if err != nil {
			return err
		}
		if err := setOrderPaymentStatus(ctx, tx, p.OrderID, domain.PaymentStatusRefunded); err != nil {
			return err
		}
		return insertEvent(ctx, tx, AggregatePayment, p.ID.String(), EventPaymentRefunded, p)
	})
	return p, err
}

func transitionPayment(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.PaymentStatus,
	gatewayResponse, reason string, conflict error) (*domain.Payment, error) {
	row := tx.QueryRowContext(ctx,
		`UPDATE payments
		 SET status = $3, gateway_response = $4, failure_reason = $5, updated_at = NOW()
		 WHERE id = $1 AND status = $2
		 RETURNING `+paymentColumns,
		id, from, to, gatewayResponse, reason)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conflict
	}
	if err != nil {
		return nil, fmt.Errorf("update payment %s -> %s: %w", from, to, err)
	}
	return p, nil
}

func setOrderPaymentStatus(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, status domain.PaymentStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1`, orderID, status)
	if err != nil {
		return fmt.Errorf("update order payment status: %w", err)
	}
	return expectOneRow(res, domain.ErrOrderNotFound)
}
