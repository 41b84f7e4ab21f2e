package guard

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted wraps the last error once every attempt failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Backoff bounds a retry loop. The delay doubles after each failed
// attempt up to MaxDelay.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Retry calls fn until it succeeds, returns an error retryable rejects, or
// MaxAttempts is reached. attempt starts at 1.
func Retry(ctx context.Context, b Backoff, retryable func(error) bool, fn func(attempt int) error) error {
	attempts := max(b.MaxAttempts, 1)
	delay := b.BaseDelay
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if err := sleepWithContext(ctx, delay); err != nil {
			return err
		}
		if delay < b.MaxDelay {
			delay = min(delay*2, b.MaxDelay)
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
}

// Always treats every error as retryable.
func Always(error) bool { return true }

func sleepWithContext(ctx context.Context, d time.Duration) error {
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
