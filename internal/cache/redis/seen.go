package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apemarkets/curator/internal/domain"
)

// SeenCache implements domain.SeenCache on Redis. It fronts the durable
// ingest ledger: a hit here skips a database round trip, a miss falls
// through to the ledger, so expiry only costs an extra query.
type SeenCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSeenCache creates a SeenCache with the given entry TTL. A zero TTL
// defaults to 24 hours.
func NewSeenCache(c *Client, ttl time.Duration) *SeenCache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &SeenCache{rdb: c.Underlying(), ttl: ttl}
}

func seenKey(upstreamID string) string {
	return "curator:seen:" + upstreamID
}

// Seen reports whether an upstream id was recently marked.
func (sc *SeenCache) Seen(ctx context.Context, upstreamID string) (bool, error) {
	n, err := sc.rdb.Exists(ctx, seenKey(upstreamID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check seen %s: %w", upstreamID, err)
	}
	return n > 0, nil
}

// MarkSeen records an upstream id for the cache TTL.
func (sc *SeenCache) MarkSeen(ctx context.Context, upstreamID string) error {
	if err := sc.rdb.Set(ctx, seenKey(upstreamID), "1", sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: mark seen %s: %w", upstreamID, err)
	}
	return nil
}

var _ domain.SeenCache = (*SeenCache)(nil)
