package authapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// counter is the Redis operation the limiter uses.
type counter interface {
	increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type redisCounter struct {
	client redis.UniversalClient
}

func (r redisCounter) increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipeline := r.client.Pipeline()
	incrCmd := pipeline.Incr(ctx, key)
	pipeline.Expire(ctx, key, ttl)

	if _, err := pipeline.Exec(ctx); err != nil {
		return 0, err
	}
	return incrCmd.Val(), nil
}

// RedisLimiter is a fixed-window limiter shared by every server instance.
// Each window gets its own key, so TTL refreshes never extend a window.
type RedisLimiter struct {
	counter counter
	prefix  string
	limit   int
	window  time.Duration
}

var _ LoginLimiter = (*RedisLimiter)(nil)

// NewRedisLimiter constructs a RedisLimiter. The caller owns client.
func NewRedisLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisLimiter {
	return newRedisLimiter(redisCounter{client: client}, prefix, limit, window)
}

func newRedisLimiter(c counter, prefix string, limit int, window time.Duration) *RedisLimiter {
	def := DefaultConfig()
	if limit <= 0 {
		limit = def.LoginIPMax
	}
	if window < time.Second {
		window = def.LoginIPWindow
	}
	return &RedisLimiter{counter: c, prefix: prefix, limit: limit, window: window}
}

// Allow implements LoginLimiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error) {
	bucket := now.Unix() / int64(l.window/time.Second)
	full := l.prefix + key + ":" + strconv.FormatInt(bucket, 10)

	n, err := l.counter.increment(ctx, full, l.window)
	if err != nil {
		return false, 0, fmt.Errorf("login limiter: %w", err)
	}
	if n <= int64(l.limit) {
		return true, 0, nil
	}

	end := time.Unix((bucket+1)*int64(l.window/time.Second), 0)
	return false, end.Sub(now), nil
}
