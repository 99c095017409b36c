// Package ratelimit throttles API clients, either with a fixed-window
// limiter shared through Redis or with a stricter sliding window for
// expensive routes.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Time
}

// Allower decides whether the caller identified by key may proceed.
type Allower interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Fixed wraps a ulule limiter.
type Fixed struct {
	l *limiter.Limiter
}

// NewFixed parses rate in ulule's "<limit>-<period>" format (e.g. "300-M").
// Counters live in Redis when client is set, otherwise in process memory.
func NewFixed(rate string, client *redis.Client, prefix string) (*Fixed, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit %q: %w", rate, err)
	}
	opts := limiter.StoreOptions{Prefix: prefix, CleanUpInterval: limiter.DefaultCleanUpInterval}
	var store limiter.Store
	if client != nil {
		store, err = limiterredis.NewStoreWithOptions(client, opts)
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(opts)
	}
	return &Fixed{l: limiter.New(store, parsed)}, nil
}

// Allow consumes one token for key.
func (f *Fixed) Allow(ctx context.Context, key string) (Decision, error) {
	lctx, err := f.l.Get(ctx, key)
	if err != nil {
		return Decision{Allowed: true}, err
	}
	return Decision{
		Allowed:   !lctx.Reached,
		Limit:     lctx.Limit,
		Remaining: lctx.Remaining,
		Reset:     time.Unix(lctx.Reset, 0),
	}, nil
}

// Sliding is a sliding-window limiter over a Redis sorted set.
type Sliding struct {
	Client *redis.Client
	Prefix string
	Window time.Duration
	Max    int
}

// Allow records an event for key and reports whether it fits the window.
// With no client or a non-positive limit every call is allowed.
func (s Sliding) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now()
	reset := now.Add(s.Window)
	if s.Client == nil || s.Max <= 0 || s.Window <= 0 {
		return Decision{Allowed: true, Limit: int64(s.Max), Remaining: int64(s.Max), Reset: reset}, nil
	}

	redisKey := s.Prefix + key
	cutoff := now.Add(-s.Window).UnixNano()

	pipe := s.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	count := pipe.ZCard(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, s.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true, Reset: reset}, err
	}

	current := count.Val()
	remaining := int64(s.Max) - current
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   current <= int64(s.Max),
		Limit:     int64(s.Max),
		Remaining: remaining,
		Reset:     reset,
	}, nil
}
