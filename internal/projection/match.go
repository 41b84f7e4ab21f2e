package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/betpoints/platform/internal/domain"
	"github.com/betpoints/platform/internal/repository"
	"github.com/google/uuid"
)

// MatchCache is a read-through snapshot cache in front of a MatchSource.
// LIVE matches use a shorter TTL. Cache faults fall through to the source.
type MatchCache struct {
	store   Store
	source  repository.MatchSource
	ttl     time.Duration
	liveTTL time.Duration
	logger  *slog.Logger
}

// NewMatchCache creates a MatchCache.
func NewMatchCache(store Store, source repository.MatchSource, ttl, liveTTL time.Duration, logger *slog.Logger) *MatchCache {
	return &MatchCache{store: store, source: source, ttl: ttl, liveTTL: liveTTL, logger: logger}
}

var _ repository.MatchSource = (*MatchCache)(nil)

func matchKey(id uuid.UUID) string {
	return fmt.Sprintf("projection:match:%s", id)
}

// GetSnapshot serves from the cache, loading and storing on a miss.
func (c *MatchCache) GetSnapshot(ctx context.Context, matchID uuid.UUID) (*domain.MatchSnapshot, error) {
	key := matchKey(matchID)
	var snap domain.MatchSnapshot
	err := GetJSON(ctx, c.store, key, &snap)
	if err == nil {
		return &snap, nil
	}
	if !errors.Is(err, ErrMiss) {
		c.logger.Warn("match cache read failed", "match_id", matchID, "error", err)
	}

	fresh, err := c.source.GetSnapshot(ctx, matchID)
	if err != nil {
		return nil, err
	}
	ttl := c.ttl
	if fresh.Status == domain.MatchLive {
		ttl = c.liveTTL
	}
	if err := SetJSON(ctx, c.store, key, fresh, ttl); err != nil {
		c.logger.Warn("match cache write failed", "match_id", matchID, "error", err)
	}
	return fresh, nil
}

// Invalidate drops a match so the next read goes to the source.
func (c *MatchCache) Invalidate(ctx context.Context, matchID uuid.UUID) error {
	return c.store.Delete(ctx, matchKey(matchID))
}
