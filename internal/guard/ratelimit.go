package guard

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter caps placements per user over a sliding window. Keys are user
// ids, so the map is swept once per window to forget users who went quiet.
type RateLimiter struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	limit     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a rate limiter with the given limit per window.
// A non-positive limit disables it.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Check records an attempt for key and reports whether it fits the window.
// Refused attempts are not recorded, so hammering does not extend the wait.
func (rl *RateLimiter) Check(_ context.Context, key string) Result {
	if rl.limit <= 0 {
		return allowed
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	valid := live(rl.windows[key], cutoff)
	if len(valid) >= rl.limit {
		rl.windows[key] = valid
		// Entries are in arrival order; the oldest frees the next slot.
		wait := valid[0].Add(rl.window).Sub(now)
		return Result{
			Reason: fmt.Sprintf("at most %d bets per %s, next in %s", rl.limit, rl.window, wait.Round(time.Second)),
			Guard:  "rate_limiter",
		}
	}

	rl.windows[key] = append(valid, now)
	return allowed
}

// Tracked returns how many keys currently hold window entries.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

func (rl *RateLimiter) sweep(cutoff time.Time) {
	for key, entries := range rl.windows {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(rl.windows, key)
		}
	}
}

func live(entries []time.Time, cutoff time.Time) []time.Time {
	valid := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}
