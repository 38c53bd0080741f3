package openai

import (
	"context"

	"golang.org/x/time/rate"
)

const secondsPerMinute = 60.0

// requestLimiter enforces a client-side request budget with a token bucket.
type requestLimiter struct {
	limiter *rate.Limiter
}

// newRequestLimiter returns a limiter allowing requestsPerMin calls per minute.
// A requestsPerMin of 0 or less means unlimited.
func newRequestLimiter(requestsPerMin int) *requestLimiter {
	if requestsPerMin <= 0 {
		return &requestLimiter{limiter: nil}
	}

	r := rate.Limit(float64(requestsPerMin) / secondsPerMinute)
	return &requestLimiter{limiter: rate.NewLimiter(r, requestsPerMin)}
}

// Wait blocks until a request is allowed or the context is done.
func (l *requestLimiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
