package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/uuid"
)

// StatusSource decides the outcome of a simulated charge. ok=false carries the refusal.
type StatusSource interface {
	GetStatus() (ok bool, refusal Refusal, other string)
}

// RandomStatus approves successRate percent of charges and spreads the rest across refusal reasons.
type RandomStatus struct {
	SuccessRate int
}

func (r RandomStatus) GetStatus() (bool, Refusal, string) {
	randomInt := rand.Intn(101) // 101 because Intn is exclusive of the upper bound
	return calcStatus(randomInt, r.SuccessRate)
}

func calcStatus(randomInt, successRate int) (bool, Refusal, string) {
	if randomInt < successRate {
		return true, RefusalUnknown, ""
	}
	otherReason := randomInt - successRate
	if otherReason == 0 || otherReason > int(RefusalSuspectedFraud) {
		return false, RefusalUnknown, "unknown reason"
	}
	return false, Refusal(otherReason), ""
}

// Simulated stands in for a real processor. Latency is applied before answering and honours ctx.
type Simulated struct {
	status  StatusSource
	latency time.Duration
}

func NewSimulated(status StatusSource, latency time.Duration) *Simulated {
	return &Simulated{status: status, latency: latency}
}

func (s *Simulated) Charge(ctx context.Context, p *domain.Payment) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}

	ok, refusal, other := s.status.GetStatus()
	if !ok {
		return "", &DeclineError{Refusal: refusal, Other: other}
	}
	return fmt.Sprintf("APPROVED TXN-%s amount=%s method=%s", uuid.NewString(), p.Amount.StringFixed(2), p.PaymentMethod), nil
}

// Refund is always success for this implementation.
func (s *Simulated) Refund(ctx context.Context, p *domain.Payment) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("REFUNDED TXN-%s amount=%s", uuid.NewString(), p.Amount.StringFixed(2)), nil
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gateway call aborted: %w", ctx.Err())
	}
}
