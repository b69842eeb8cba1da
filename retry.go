package respan

import (
	"context"
	"math"
	"time"
)

// RetryConfig controls delivery retries for ingest POSTs. Attempts are
// retried on transport errors and 5xx responses; other non-2xx statuses
// are not retried.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// RetryDelay is the delay before the first retry.
	RetryDelay time.Duration
	// BackoffMultiplier scales the delay after each retry.
	BackoffMultiplier float64
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
}

// DefaultRetry mirrors the ingest SDK defaults: three retries with
// exponential backoff from one second, capped at thirty seconds.
var DefaultRetry = RetryConfig{
	MaxRetries:        3,
	RetryDelay:        1 * time.Second,
	BackoffMultiplier: 2.0,
	MaxDelay:          30 * time.Second,
}

// delay returns the backoff before the given retry (0-based retry index).
func (r RetryConfig) delay(retry int) time.Duration {
	multiplier := r.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	d := time.Duration(float64(r.RetryDelay) * math.Pow(multiplier, float64(retry)))
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d < 0 {
		d = r.MaxDelay
	}
	return d
}

// sleepContext waits for d or until ctx ends, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
