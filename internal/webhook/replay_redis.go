package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisReplayCache shares replay state across instances. Expiry is left to
// Redis TTLs, so no explicit pruning pass is needed.
type RedisReplayCache struct {
	client *redis.Client
	prefix string
}

func NewRedisReplayCache(client *redis.Client) *RedisReplayCache {
	return &RedisReplayCache{client: client, prefix: "webhook:replay:"}
}

func (c *RedisReplayCache) MarkSeen(ctx context.Context, timestamp, signature string, ttl time.Duration) (bool, error) {
	key := c.prefix + timestamp + "." + signature
	inserted, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("webhook: mark replay key: %w", err)
	}
	return !inserted, nil
}
