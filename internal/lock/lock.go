// Package lock serializes work per key (one customer's checkout, one order's payment).
package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker blocks until the key is held or ctx is done. The returned func releases the key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// CustomerKey guards one customer's cart. Checkout and every cart mutation hold it, so a line
// cannot slip in between the checkout read and the cart clear.
func CustomerKey(customerID string) string {
	return "cart:" + customerID
}
