package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// The window is opened by the first hit and never extended by later ones. A
// counter left without a TTL gets one on its next hit.
var hitScript = redis.NewScript(`local n = redis.call("incr", KEYS[1])
if n == 1 or redis.call("pttl", KEYS[1]) < 0 then
	redis.call("pexpire", KEYS[1], ARGV[1])
end
return n`)

// RateLimiter counts API requests per client in fixed windows kept in Redis, so
// every track-api replica draws from the same budget.
type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(c *redis.Client) *RateLimiter {
	return &RateLimiter{c: c}
}

// Allow records one request for key and reports whether it fits in limit, along
// with the number of requests seen in the current window.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	if window <= 0 {
		return false, 0, errors.Errorf("redis ratelimit %s: window must be positive", key)
	}
	n, err := hitScript.Run(ctx, rl.c, []string{key}, max(window.Milliseconds(), 1)).Int64()
	if err != nil {
		return false, 0, errors.Wrapf(err, "redis ratelimit %s", key)
	}
	return n <= limit, n, nil
}
