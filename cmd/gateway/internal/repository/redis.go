package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "stock:"
	feedChannel = "ticks.live"

	opTimeout = 2 * time.Second
)

// Compile-time check to ensure RedisStore implements TickStore
var _ TickStore = (*RedisStore)(nil)

// RedisStore reads the per-symbol recency windows the ingestor maintains and
// subscribes to its live feed channel. Read-only: the ingestor owns all
// writes to these keys.
type RedisStore struct {
	client *redis.Client
	pubsub *redis.PubSub
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		pubsub: client.Subscribe(context.Background(), feedChannel),
	}
}

// Snapshot fetches a symbol's full cached window, newest first, as the raw
// JSON entries (0-5 of them). Absent or expired keys yield an empty slice.
func (r *RedisStore) Snapshot(ctx context.Context, symbol string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.client.LRange(ctx, keyPrefix+symbol, 0, -1).Result()
}

// RunFeed is a blocking loop that reads accepted ticks from the feed channel
// and hands each payload to the callback.
func (r *RedisStore) RunFeed(ctx context.Context, onTick func(payload string)) {
	ch := r.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			onTick(msg.Payload)
		}
	}
}

func (r *RedisStore) Close() error {
	if err := r.pubsub.Close(); err != nil {
		return err
	}
	return r.client.Close()
}
