package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * time.Second

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// RedisLocker serializes work on a key across processes with SET NX PX.
type RedisLocker struct {
	r            *redis.Client
	retryBackoff time.Duration
}

func NewRedisLocker(r *redis.Client, retryBackoff time.Duration) *RedisLocker {
	if retryBackoff <= 0 {
		retryBackoff = 50 * time.Millisecond
	}
	return &RedisLocker{r: r, retryBackoff: retryBackoff}
}

// WithLock runs fn while holding key. It waits for the lock until ctx is done.
// The lock is released after fn returns, whatever the result.
func (l *RedisLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token := uuid.NewString()

	for {
		ok, err := l.r.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return errors.Wrapf(err, "acquire lock %s", key)
		}
		if ok {
			defer l.release(key, token)
			return fn(ctx)
		}
		timer := time.NewTimer(l.retryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrapf(ctx.Err(), "wait lock %s", key)
		case <-timer.C:
		}
	}
}

func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.r, []string{key}, token).Err()
}
