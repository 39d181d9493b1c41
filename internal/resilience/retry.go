package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// retryJitter spreads each backoff by up to ±25%.
const retryJitter = 0.25

// RetryPolicy bounds how the perception extractors retry transient failures.
// Analysis flows never retry.
type RetryPolicy struct {
	Attempts   int           // total tries including the first
	Backoff    time.Duration // delay before the first retry, doubled after each
	MaxBackoff time.Duration

	// OnRetry, when set, runs before each sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy is three tries starting at 500ms, capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 500 * time.Millisecond, MaxBackoff: 30 * time.Second}
}

// RetryPolicyFor returns the default policy with attempts tries. A
// non-positive value keeps the default.
func RetryPolicyFor(attempts int) RetryPolicy {
	p := DefaultRetryPolicy()
	if attempts > 0 {
		p.Attempts = attempts
	}
	return p
}

// Retry runs fn until it succeeds, returns a non-transient error, or the
// policy runs out of attempts. Cancelling ctx stops at once with the last
// error.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err
		if ctx.Err() != nil || !IsTransient(err) || attempt == p.Attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		timer := time.NewTimer(jitter(p.delay(attempt)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.Backoff <= 0 {
		p.Backoff = def.Backoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	return p
}

// delay is the un-jittered wait after the given failed attempt (1-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.Backoff
	for i := 1; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, p.MaxBackoff)
}

func jitter(d time.Duration) time.Duration {
	span := float64(d) * retryJitter
	return time.Duration(float64(d) + (rand.Float64()*2-1)*span)
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
