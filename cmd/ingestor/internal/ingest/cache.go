package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwkim-dev/tickstream/pkg/models"
)

const (
	keyPrefix   = "stock:"
	FeedChannel = "ticks.live"

	// Per-symbol recency window: newest 5 ticks, refreshed to a 1 hour
	// lifetime on every write.
	cacheDepth = 5
	cacheTTL   = 1 * time.Hour

	// Bounded timeout for any single store round trip.
	opTimeout = 2 * time.Second
)

// ErrCacheUnavailable marks a cache store failure (unreachable or timed
// out). The event that hit it is dropped, never retried.
var ErrCacheUnavailable = errors.New("recency cache unavailable")

// RecencyCache is the write side of the per-symbol tick window, backed by
// Redis lists. The ingestion pipeline is its only writer; the gateway reads
// the same keys.
type RecencyCache struct {
	rdb RedisClient
}

func NewRecencyCache(rdb RedisClient) *RecencyCache {
	return &RecencyCache{rdb: rdb}
}

// Put prepends the tick to its symbol's window, trims the window to the
// newest 5 entries, refreshes the key's TTL, and announces the tick on the
// live feed channel. All four commands run in one pipeline so a tick is
// never cached without being announced, and the per-key order is fixed.
func (c *RecencyCache) Put(ctx context.Context, t models.Tick) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tick: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := keyPrefix + t.StockID
	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, cacheDepth-1)
	pipe.Expire(ctx, key, cacheTTL)
	pipe.Publish(ctx, FeedChannel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// PeekLatest returns the most recent cached tick for a symbol, or nil if
// the key is absent or expired. An entry that no longer decodes is treated
// as absent.
func (c *RecencyCache) PeekLatest(ctx context.Context, stockID string) (*models.Tick, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := c.rdb.LIndex(ctx, keyPrefix+stockID, 0).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	var t models.Tick
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, nil
	}
	return &t, nil
}

// Snapshot returns the symbol's full cached window, newest first, as the
// raw JSON entries (0-5 of them). Absent or expired keys yield an empty
// slice.
func (c *RecencyCache) Snapshot(ctx context.Context, stockID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	entries, err := c.rdb.LRange(ctx, keyPrefix+stockID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return entries, nil
}
