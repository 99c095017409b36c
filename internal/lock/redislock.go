// Package lock serialises work on a shared key across API replicas using Redis.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/optica-pos/internal/resilience"
)

// ErrNotConfigured is returned when a Locker has no Redis client.
var ErrNotConfigured = errors.New("lock: redis client not configured")

// releaseScript deletes the key only while it still holds our token, so a
// holder whose TTL lapsed cannot release a lock that someone else now owns.
var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// Locker provides a Redis-backed mutual exclusion lock.
type Locker struct {
	Client       *redis.Client
	Prefix       string
	RetryBackoff time.Duration
}

// WithLock runs fn while holding the lock for key. It polls with a jittered
// exponential backoff, capped at eight times RetryBackoff, until the lock is
// acquired or ctx is done. The lock is released when fn returns, error or not.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.Client == nil {
		return ErrNotConfigured
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	fullKey := l.Prefix + key
	token := uuid.NewString()

	for attempt := 1; ; attempt++ {
		ok, err := l.Client.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		wait := resilience.Backoff(backoff, min(attempt, 4), 0.2)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	defer func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.Client, []string{fullKey}, token).Err()
	}()
	return fn(ctx)
}

// Held reports whether key is currently locked.
func (l Locker) Held(ctx context.Context, key string) (bool, error) {
	if l.Client == nil {
		return false, ErrNotConfigured
	}
	n, err := l.Client.Exists(ctx, l.Prefix+key).Result()
	return n > 0, err
}
