package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls how often and how patiently a provider call is
// repeated after a transient failure.
type RetryPolicy struct {
	// Attempts is the total number of tries including the first. Default: 3.
	Attempts int
	// BaseDelay is the wait before the first retry. Default: 250ms.
	BaseDelay time.Duration
	// MaxDelay caps a single wait. Default: 10s.
	MaxDelay time.Duration
	// Jitter is the random spread applied to each wait, as a fraction of it.
	Jitter float64

	// Retryable overrides IsTransient when set.
	Retryable func(err error) bool
	// BeforeRetry runs before each wait with the 1-based retry number.
	BeforeRetry func(retry int, err error)
}

// DefaultRetryPolicy is used for every outbound lookup, profile and email call.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: 250 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		Jitter:    0.25,
	}
}

// NewRetryPolicy builds a policy from configuration values. Non-positive
// inputs keep the default.
func NewRetryPolicy(attempts int, baseDelay, maxDelay time.Duration) RetryPolicy {
	p := DefaultRetryPolicy()
	if attempts > 0 {
		p.Attempts = attempts
	}
	if baseDelay > 0 {
		p.BaseDelay = baseDelay
	}
	if maxDelay > 0 {
		p.MaxDelay = maxDelay
	}
	return p
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx ends.
func Do(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for calls that produce a value. The zero value is returned
// alongside the final error.
func DoVal[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !retryable(err) || attempt == p.Attempts-1 {
			return zero, err
		}
		if p.BeforeRetry != nil {
			p.BeforeRetry(attempt+1, err)
		}

		t := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, err
		case <-t.C:
		}
	}
	return zero, err
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// LogRetry returns a BeforeRetry hook that logs at warn level.
func LogRetry(provider, op string) func(int, error) {
	return func(retry int, err error) {
		zap.L().Warn("resilience: retrying provider call",
			zap.String("provider", provider),
			zap.String("op", op),
			zap.Int("retry", retry),
			zap.Error(err),
		)
	}
}
