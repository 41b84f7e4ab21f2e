package guard

import (
	"context"
	"sync"
)

// IdempotencyGuard suppresses duplicate deliveries, such as a redelivered
// match-state message. It remembers the last capacity keys.
type IdempotencyGuard struct {
	mu       sync.Mutex
	seen     map[string]bool
	order    []string
	capacity int
}

// NewIdempotencyGuard creates a bounded in-memory guard.
func NewIdempotencyGuard(capacity int) *IdempotencyGuard {
	return &IdempotencyGuard{
		seen:     make(map[string]bool),
		capacity: max(capacity, 1),
	}
}

// Check returns whether the given key has already been processed.
func (ig *IdempotencyGuard) Check(_ context.Context, key string) Result {
	if key == "" {
		return allowed
	}

	ig.mu.Lock()
	defer ig.mu.Unlock()

	if ig.seen[key] {
		return Result{
			Reason: "duplicate delivery: key already processed",
			Guard:  "idempotency",
		}
	}

	ig.seen[key] = true
	ig.order = append(ig.order, key)
	if len(ig.order) > ig.capacity {
		delete(ig.seen, ig.order[0])
		ig.order = ig.order[1:]
	}
	return allowed
}

// Remove forgets a key so a failed delivery can be processed again.
func (ig *IdempotencyGuard) Remove(key string) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	delete(ig.seen, key)
}
