package openai

import (
	"context"

	"golang.org/x/time/rate"
)

// limiter throttles provider calls. A nil limiter never blocks.
type limiter struct {
	l *rate.Limiter
}

func newLimiter(rps float64, burst int) *limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &limiter{l: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *limiter) wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.l.Wait(ctx)
}
