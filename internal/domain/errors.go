package domain

import "errors"

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrAddressRequired = errors.New("shipping and billing address must be set")
	ErrAddressNotFound = errors.New("address not found")
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")

	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is unavailable")
	ErrVariantNotFound    = errors.New("variant not found")
	ErrInsufficientStock  = errors.New("insufficient stock")

	ErrCheckoutValidationFailed = errors.New("checkout validation failed")
	ErrPaymentValidationFailed  = errors.New("payment validation failed")

	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidStatus     = errors.New("unknown order status")

	ErrPaymentNotFound         = errors.New("payment not found")
	ErrInvalidPaymentMethod    = errors.New("invalid payment method")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrMissingIdempotencyKey   = errors.New("idempotency key is required")
	ErrDuplicateIdempotencyKey = errors.New("payment with this idempotency key already exists")
	ErrAmountMismatch          = errors.New("amount mismatch")
	ErrPaymentAlreadyCompleted = errors.New("order already has a completed payment")
	ErrPaymentNotRefundable    = errors.New("only completed payments can be refunded")
	ErrPaymentAlreadyRefunded  = errors.New("payment already refunded")

	ErrGateway = errors.New("payment gateway error")
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindStock
	KindGateway
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStock:
		return "stock"
	case KindGateway:
		return "gateway"
	default:
		return "internal"
	}
}

// Order matters: a stock or not-found cause wrapped by a validation failure is a validation error.
var kindTable = []struct {
	kind ErrorKind
	errs []error
}{
	{KindValidation, []error{
		ErrCheckoutValidationFailed, ErrPaymentValidationFailed, ErrEmptyCart, ErrInvalidQuantity,
		ErrInvalidPaymentMethod, ErrInvalidAmount, ErrMissingIdempotencyKey, ErrInvalidStatus,
	}},
	{KindNotFound, []error{
		ErrCartNotFound, ErrItemNotFound, ErrAddressRequired, ErrAddressNotFound, ErrProductNotFound,
		ErrProductUnavailable, ErrVariantNotFound, ErrOrderNotFound, ErrPaymentNotFound,
	}},
	{KindConflict, []error{
		ErrAmountMismatch, ErrPaymentAlreadyCompleted, ErrPaymentNotRefundable, ErrPaymentAlreadyRefunded,
		ErrInvalidTransition, ErrDuplicateIdempotencyKey,
	}},
	{KindStock, []error{ErrInsufficientStock}},
	{KindGateway, []error{ErrGateway}},
}

// KindOf maps an error onto the error taxonomy. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}
	for _, row := range kindTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.kind
			}
		}
	}
	return KindInternal
}
