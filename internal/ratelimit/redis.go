package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "ratelimit:"

// RedisStore shares counters across API replicas through Redis.
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Hit implements Store. The first increment of a window sets its expiry so the
// key disappears on its own once the window ends.
func (s *RedisStore) Hit(ctx context.Context, key string, d time.Duration) (int, time.Time, error) {
	key = redisKeyPrefix + key

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, key, d).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("ratelimit expire: %w", err)
		}
		return 1, s.now().Add(d), nil
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("ratelimit ttl: %w", err)
	}
	if ttl < 0 {
		// The key lost its expiry (e.g. a crash between INCR and PEXPIRE).
		if err := s.client.PExpire(ctx, key, d).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("ratelimit expire: %w", err)
		}
		ttl = d
	}
	return int(count), s.now().Add(ttl), nil
}
