package throttle

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Limiter shared by every instance pointing at the same server.
// Attempts are kept as: INCR throttle:login:{key}, expiring after the window
// that started with the first attempt.
type Redis struct {
	client *redis.Client
	max    int
	window time.Duration
}

// NewRedis allows up to max attempts per key within window.
func NewRedis(client *redis.Client, max int, window time.Duration) *Redis {
	return &Redis{client: client, max: max, window: window}
}

func (r *Redis) Attempt(ctx context.Context, key string) (bool, error) {
	k := r.key(key)
	n, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(r.max), nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *Redis) key(key string) string {
	return "throttle:login:" + key
}
