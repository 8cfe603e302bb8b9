package lookup

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter wraps a rate.Limiter that backs off when the search API
// answers 429 and recovers on success.
// On success the rate grows by 20% up to 2x initial; on 429 it halves, down
// to initial/4.
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	current rate.Limit
}

// NewAdaptiveLimiter creates a limiter allowing perSecond queries with the
// given burst.
func NewAdaptiveLimiter(perSecond float64, burst int) *AdaptiveLimiter {
	l := rate.Limit(perSecond)
	if burst <= 0 {
		burst = 1
	}
	return &AdaptiveLimiter{limiter: rate.NewLimiter(l, burst), initial: l, current: l}
}

// Wait blocks until a query is allowed or ctx ends.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess nudges the rate back up.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(min(a.current*1.2, a.initial*2))
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(max(a.current*0.5, a.initial/4))
	zap.L().Warn("lookup: reducing search rate after 429",
		zap.Float64("new_rate", float64(a.current)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) set(l rate.Limit) {
	a.current = l
	a.limiter.SetLimit(l)
}
