package payment

import (
	"context"
	"math/rand"
	"time"
)

// Decider settles a payment for an order and reports whether it succeeded.
type Decider interface {
	Decide(ctx context.Context, orderID string) (bool, error)
}

// RandomDecider stands in for a payment provider. It sleeps a random amount
// between MinDelay and MaxDelay and approves with probability SuccessRate.
type RandomDecider struct {
	SuccessRate float64
	MinDelay    time.Duration
	MaxDelay    time.Duration

	rng *rand.Rand
}

func NewRandomDecider(successRate float64, minDelay, maxDelay time.Duration) *RandomDecider {
	return &RandomDecider{
		SuccessRate: successRate,
		MinDelay:    minDelay,
		MaxDelay:    maxDelay,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (d *RandomDecider) Decide(ctx context.Context, orderID string) (bool, error) {
	delay := d.MinDelay
	if d.MaxDelay > d.MinDelay {
		delay += time.Duration(d.rng.Int63n(int64(d.MaxDelay - d.MinDelay)))
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return d.rng.Float64() < d.SuccessRate, nil
}
