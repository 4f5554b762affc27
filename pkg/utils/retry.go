package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted is returned by Retry when every attempt failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy configures Retry. The wait before retry n+1 is BaseDelay * 2^n,
// where n is the 0-based index of the attempt that just failed.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Sleep blocks for d; nil means a timer that honors ctx cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy is 5 attempts with 1s, 2s, 4s, 8s waits in between.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second}
}

// Delay returns the wait after the given 0-based failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(int64(1)<<attempt)
}

// Retry calls fn until it succeeds or MaxAttempts calls have failed. Every error
// from fn is treated as retryable. Context cancellation during a wait stops
// immediately with the context error.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}
		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
