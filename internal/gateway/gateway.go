// Package gateway is the payment gateway collaborator: charge and refund against an external processor.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
)

var (
	ErrDeclined    = errors.New("payment declined")
	ErrUnavailable = errors.New("payment gateway unavailable")
)

// Gateway returns the processor's response text on success. Any error means the money did not move.
type Gateway interface {
	Charge(ctx context.Context, p *domain.Payment) (string, error)
	Refund(ctx context.Context, p *domain.Payment) (string, error)
}

type Refusal int

const (
	RefusalUnknown Refusal = iota
	RefusalNoFunds
	RefusalCardExpired
	RefusalCardBlocked
	RefusalLimitExceeded
	RefusalSuspectedFraud
)

func (r Refusal) String() string {
	switch r {
	case RefusalNoFunds:
		return "NO_FUNDS"
	case RefusalCardExpired:
		return "CARD_EXPIRED"
	case RefusalCardBlocked:
		return "CARD_BLOCKED"
	case RefusalLimitExceeded:
		return "LIMIT_EXCEEDED"
	case RefusalSuspectedFraud:
		return "SUSPECTED_FRAUD"
	default:
		return "UNKNOWN"
	}
}

// DeclineError is a business refusal from the processor, as opposed to a transport failure.
type DeclineError struct {
	Refusal Refusal
	Other   string
}

func (e *DeclineError) Error() string {
	if e.Other != "" {
		return fmt.Sprintf("%s: %s", ErrDeclined, e.Other)
	}
	return fmt.Sprintf("%s: %s", ErrDeclined, e.Refusal)
}

func (e *DeclineError) Unwrap() error {
	return ErrDeclined
}
