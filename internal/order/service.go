// Package order exposes read and status operations over placed orders.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Store interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus) (time.Time, error)
}

type Service struct {
	store Store
	log   logrus.FieldLogger
}

func NewService(store Store, log logrus.FieldLogger) *Service {
	return &Service{store: store, log: log}
}

// GetOrder hides other customers' orders behind ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, customerID string, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, customerID string) ([]*domain.Order, error) {
	return s.store.ListOrdersByCustomer(ctx, customerID)
}

func (s *Service) CancelOrder(ctx context.Context, customerID string, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, domain.OrderStatusCancelled)
}

// UpdateOrderStatus is the fulfilment-side entry point and is not scoped to a customer.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, status)
}

func (s *Service) transition(ctx context.Context, order *domain.Order, to domain.OrderStatus) (*domain.Order, error) {
	from := order.Status
	if !domain.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}

	updatedAt, err := s.store.UpdateOrderStatus(ctx, order.ID, from, to)
	if err != nil {
		return nil, err
	}
	order.Status = to
	order.UpdatedAt = updatedAt

	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       to,
	}).Info("order status changed")
	return order, nil
}
