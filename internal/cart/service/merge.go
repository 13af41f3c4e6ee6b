package service

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/sirupsen/logrus"
)

type DroppedLine struct {
	ProductID int64  `json:"product_id"`
	VariantID int64  `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

type MergeResult struct {
	Cart    *domain.Cart  `json:"cart"`
	Merged  int           `json:"merged"`
	Dropped []DroppedLine `json:"dropped"`
}

// MergeGuestCart folds a guest cart into the customer's cart after login. Each guest line is
// re-validated on its own; lines that fail are logged and dropped so a stale guest cart never
// blocks the merge. The guest cart is deleted afterwards.
func (s *CartService) MergeGuestCart(ctx context.Context, guestCartID, customerID string) (*MergeResult, error) {
	result := &MergeResult{Dropped: []DroppedLine{}}

	guest, err := s.repo.GetCart(ctx, guestCartID)
	if errors.Is(err, domain.ErrCartNotFound) || guestCartID == customerID {
		result.Cart, err = s.GetCart(ctx, customerID)
		return result, err
	}
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	target, err := s.currentCart(ctx, customerID)
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"customer_id": customerID, "guest_cart_id": guestCartID})

	for _, line := range guest.Items {
		item := domain.CartItem{
			ID:        line.ID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
		}
		if idx, ok := target.FindLine(line.ProductID, line.VariantID); ok {
			item.ID = target.Items[idx].ID
			item.Quantity += target.Items[idx].Quantity
		}

		drop := func(reason error) {
			log.WithError(reason).WithFields(logrus.Fields{
				"product_id": line.ProductID,
				"variant_id": line.VariantID,
				"quantity":   item.Quantity,
			}).Warn("dropping guest cart line")
			result.Dropped = append(result.Dropped, DroppedLine{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
				Reason:    reason.Error(),
			})
		}

		if !domain.ValidQuantity(item.Quantity) {
			drop(domain.ErrInvalidQuantity)
			continue
		}

		p, err := s.pricing.Quote(ctx, pricing.Line{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity})
		if err != nil {
			drop(err)
			continue
		}
		item.Stamp(p)

		if err := s.repo.AddItem(ctx, customerID, item); err != nil {
			return nil, err
		}

		if idx, ok := target.FindLine(item.ProductID, item.VariantID); ok {
			target.Items[idx] = item
		} else {
			target.Items = append(target.Items, item)
		}
		result.Merged++
	}

	if err := s.repo.DeleteCart(ctx, guestCartID); err != nil && !errors.Is(err, domain.ErrCartNotFound) {
		log.WithError(err).Warn("failed to delete merged guest cart")
	}
	invalidateCache(s, guestCartID)

	log.WithFields(logrus.Fields{"merged": result.Merged, "dropped": len(result.Dropped)}).Info("guest cart merged")

	result.Cart, err = s.afterWrite(ctx, customerID)
	if errors.Is(err, domain.ErrCartNotFound) {
		result.Cart = &domain.Cart{CustomerID: customerID, Items: []domain.CartItem{}}
		return result, nil
	}
	return result, err
}
