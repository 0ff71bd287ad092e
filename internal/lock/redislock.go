package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock is still held by someone else after Wait.
var ErrNotAcquired = errors.New("lock: not acquired")

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Locker provides a Redis-backed mutual exclusion lock keyed by name.
type Locker struct {
	R      redis.Cmdable
	Prefix string
	// Wait bounds how long WithLock polls for a held lock. Zero waits until ctx ends.
	Wait         time.Duration
	RetryBackoff time.Duration
}

func (l Locker) key(name string) string {
	prefix := l.Prefix
	if prefix == "" {
		prefix = "lock"
	}
	return prefix + ":" + name
}

// WithLock runs fn while holding the lock name. The lock is released when fn
// returns, and expires after ttl if the holder dies.
func (l Locker) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	waitCtx := ctx
	if l.Wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.Wait)
		defer cancel()
	}

	key := l.key(name)
	token := uuid.NewString()
	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("lock %s: %w", name, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(retry)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %s", ErrNotAcquired, name)
		case <-timer.C:
		}
	}
	defer func() {
		_ = releaseScript.Run(context.Background(), l.R, []string{key}, token).Err()
	}()
	return fn(ctx)
}
