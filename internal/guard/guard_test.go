package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := rl.Check(ctx, "test-key")
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	ctx := context.Background()

	rl.Check(ctx, "test-key")
	rl.Check(ctx, "test-key")
	result := rl.Check(ctx, "test-key")

	assert.False(t, result.Allowed)
	assert.Equal(t, "rate_limiter", result.Guard)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Date(2026, 4, 18, 15, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, rl.Check(ctx, "u").Allowed)
	assert.False(t, rl.Check(ctx, "u").Allowed)
	now = now.Add(time.Minute)
	assert.True(t, rl.Check(ctx, "u").Allowed)
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	ctx := context.Background()

	r1 := rl.Check(ctx, "key-a")
	r2 := rl.Check(ctx, "key-b")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestRateLimiter_ReportsWait(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2026, 4, 18, 15, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	rl.Check(ctx, "u")
	now = now.Add(20 * time.Second)
	rl.Check(ctx, "u")
	now = now.Add(10 * time.Second)

	result := rl.Check(ctx, "u")
	assert.False(t, result.Allowed)
	assert.Equal(t, "at most 2 bets per 1m0s, next in 30s", result.Reason)

	// The refused attempt does not push the window out.
	now = now.Add(30 * time.Second)
	assert.True(t, rl.Check(ctx, "u").Allowed)
}

func TestRateLimiter_ForgetsIdleUsers(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	now := time.Date(2026, 4, 18, 15, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for _, user := range []string{"a", "b", "c"} {
		rl.Check(ctx, user)
	}
	assert.Equal(t, 3, rl.Tracked())

	now = now.Add(2 * time.Minute)
	rl.Check(ctx, "d")
	assert.Equal(t, 1, rl.Tracked(), "only the active user is kept")
}

func TestRateLimiter_DisabledWhenZero(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	for range 5 {
		assert.True(t, rl.Check(context.Background(), "u").Allowed)
	}
}

func TestCircuitBreaker_ClosedByDefault(t *testing.T) {
	cb := NewCircuitBreaker(3, 5*time.Second)
	ctx := context.Background()

	result := cb.Check(ctx, "sink-a")
	assert.True(t, result.Allowed)
}

func TestCircuitBreaker_OpensOnThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)
	ctx := context.Background()

	cb.Check(ctx, "sink-a")
	cb.RecordFailure("sink-a")
	cb.RecordFailure("sink-a")

	result := cb.Check(ctx, "sink-a")
	assert.False(t, result.Allowed)
	assert.Equal(t, "circuit_breaker", result.Guard)
	assert.Equal(t, CircuitOpen, cb.State("sink-a"))
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, 5*time.Second)
	ctx := context.Background()

	cb.Check(ctx, "sink-a")
	cb.RecordFailure("sink-a")
	cb.RecordSuccess("sink-a")
	cb.RecordFailure("sink-a")

	result := cb.Check(ctx, "sink-a")
	assert.True(t, result.Allowed)
}

func TestCircuitBreaker_HalfOpenSingleProbe(t *testing.T) {
	cb := NewCircuitBreaker(1, 5*time.Second)
	now := time.Date(2026, 4, 18, 15, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	cb.RecordFailure("sink-a")
	assert.False(t, cb.Check(ctx, "sink-a").Allowed)

	now = now.Add(5 * time.Second)
	assert.True(t, cb.Check(ctx, "sink-a").Allowed, "probe after reset timeout")
	assert.False(t, cb.Check(ctx, "sink-a").Allowed, "only one probe at a time")

	cb.RecordFailure("sink-a")
	assert.Equal(t, CircuitOpen, cb.State("sink-a"))

	now = now.Add(5 * time.Second)
	require.True(t, cb.Check(ctx, "sink-a").Allowed)
	cb.RecordSuccess("sink-a")
	assert.Equal(t, CircuitClosed, cb.State("sink-a"))
}

func TestIdempotencyGuard_AllowsFirst(t *testing.T) {
	ig := NewIdempotencyGuard(10)
	ctx := context.Background()

	result := ig.Check(ctx, "req-123")
	assert.True(t, result.Allowed)
}

func TestIdempotencyGuard_BlocksDuplicate(t *testing.T) {
	ig := NewIdempotencyGuard(10)
	ctx := context.Background()

	ig.Check(ctx, "req-123")
	result := ig.Check(ctx, "req-123")

	assert.False(t, result.Allowed)
	assert.Equal(t, "idempotency", result.Guard)
}

func TestIdempotencyGuard_EmptyKeyAllowed(t *testing.T) {
	ig := NewIdempotencyGuard(10)
	ctx := context.Background()

	r1 := ig.Check(ctx, "")
	r2 := ig.Check(ctx, "")

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestIdempotencyGuard_RemoveAllowsRetry(t *testing.T) {
	ig := NewIdempotencyGuard(10)
	ctx := context.Background()

	ig.Check(ctx, "req-456")
	ig.Remove("req-456")

	result := ig.Check(ctx, "req-456")
	require.True(t, result.Allowed)
}

func TestIdempotencyGuard_EvictsOldest(t *testing.T) {
	ig := NewIdempotencyGuard(2)
	ctx := context.Background()

	ig.Check(ctx, "a")
	ig.Check(ctx, "b")
	ig.Check(ctx, "c")

	assert.True(t, ig.Check(ctx, "a").Allowed)
	assert.False(t, ig.Check(ctx, "c").Allowed)
}

var errTransient = errors.New("transient")

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Backoff{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}, Always,
		func(attempt int) error {
			calls++
			assert.Equal(t, calls, attempt)
			if attempt < 3 {
				return errTransient
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_Exhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Backoff{MaxAttempts: 3}, Always, func(int) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := Retry(context.Background(), Backoff{MaxAttempts: 5}, func(err error) bool { return errors.Is(err, errTransient) },
		func(int) error {
			calls++
			return permanent
		})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, Backoff{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}, Always, func(int) error {
		return errTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
}
