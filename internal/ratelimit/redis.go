package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps buckets as Redis counters with window-length TTLs, so
// every API replica draws from the same quota. Each tier is INCRed
// atomically; if any tier comes back over its limit the increments are
// compensated, so a rejected request consumes no quota.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Check(ctx context.Context, class Class, identityKey string, tiers []Tier, now time.Time) (Decision, error) {
	taken := make([]string, 0, len(tiers))

	for _, tier := range tiers {
		key := bucketKey(identityKey, class, tier)

		count, err := s.client.Incr(ctx, key).Result()
		if err != nil {
			return Decision{}, fmt.Errorf("incr bucket %s: %w", key, err)
		}
		if count == 1 {
			// New window: the key's TTL defines windowStart + windowDuration.
			if err := s.client.PExpire(ctx, key, tier.Window).Err(); err != nil {
				return Decision{}, fmt.Errorf("expire bucket %s: %w", key, err)
			}
		}

		if count > tier.Limit {
			retryAfter, ttlErr := s.client.PTTL(ctx, key).Result()
			if ttlErr != nil || retryAfter < 0 {
				retryAfter = tier.Window
			}
			s.release(ctx, append(taken, key))
			return Decision{ViolatedTier: tier.Name, RetryAfter: retryAfter}, nil
		}
		taken = append(taken, key)
	}

	return allow, nil
}

func (s *RedisStore) release(ctx context.Context, keys []string) {
	pipe := s.client.Pipeline()
	for _, key := range keys {
		pipe.Decr(ctx, key)
	}
	_, _ = pipe.Exec(ctx)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
