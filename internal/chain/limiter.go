package chain

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter caps RPC requests per second. A nil Limiter never waits.
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter returns nil for rps <= 0.
func NewLimiter(rps float64) *Limiter {
	if rps <= 0 {
		return nil
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait blocks until the next request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.l.Wait(ctx)
}
