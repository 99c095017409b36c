package barcode_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/optica-pos/internal/barcode"
	"github.com/noah-isme/optica-pos/internal/resilience"
)

func newRegistry(t *testing.T, src barcode.Source) (*barcode.Registry, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gen, err := barcode.NewGenerator("", src)
	require.NoError(t, err)
	return &barcode.Registry{Client: client, Generator: gen, TTL: time.Hour, MaxAttempts: 3}, mr
}

func TestRegistryIssueReservesCode(t *testing.T) {
	reg, mr := newRegistry(t, nil)
	ctx := context.Background()

	code, err := reg.Issue(ctx)
	require.NoError(t, err)
	require.True(t, barcode.Validate(code))
	require.True(t, mr.Exists("barcode:reserved:"+code))
	require.Equal(t, time.Hour, mr.TTL("barcode:reserved:"+code))

	reserved, err := reg.Reserved(ctx, code)
	require.NoError(t, err)
	require.True(t, reserved)
}

func TestRegistryRetriesOnCollision(t *testing.T) {
	// First draw collides with a pre-reserved code, second draw is free.
	reg, mr := newRegistry(t, &fixedSource{values: []int{12345, 6789, 1, 2}})
	require.NoError(t, mr.Set("barcode:reserved:7751234567892", "taken"))

	code, err := reg.Issue(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, "7751234567892", code)
	require.Equal(t, "775000010002", code[:12])
}

func TestRegistryExhausted(t *testing.T) {
	reg, mr := newRegistry(t, &fixedSource{values: []int{12345, 6789}})
	require.NoError(t, mr.Set("barcode:reserved:7751234567892", "taken"))

	_, err := reg.Issue(context.Background())
	require.ErrorIs(t, err, barcode.ErrExhausted)
}

func TestRegistryIssueNDistinct(t *testing.T) {
	reg, _ := newRegistry(t, nil)
	codes, err := reg.IssueN(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, codes, 25)
	seen := map[string]struct{}{}
	for _, c := range codes {
		_, dup := seen[c]
		require.False(t, dup, c)
		seen[c] = struct{}{}
	}
}

func TestRegistryReserve(t *testing.T) {
	reg, _ := newRegistry(t, nil)
	ctx := context.Background()

	require.ErrorIs(t, reg.Reserve(ctx, "4006381333932"), barcode.ErrMalformed)
	require.NoError(t, reg.Reserve(ctx, "4006381333931"))
	require.ErrorIs(t, reg.Reserve(ctx, "4006381333931"), barcode.ErrTaken)
}

func TestRegistryWithoutRedis(t *testing.T) {
	gen, err := barcode.NewGenerator("", nil)
	require.NoError(t, err)
	reg := &barcode.Registry{Generator: gen}
	ctx := context.Background()

	code, err := reg.Issue(ctx)
	require.NoError(t, err)
	require.True(t, barcode.Validate(code))

	reserved, err := reg.Reserved(ctx, code)
	require.NoError(t, err)
	require.False(t, reserved)
	require.NoError(t, reg.Reserve(ctx, code))
}

func TestRegistryBreakerOpensOnRedisFailure(t *testing.T) {
	reg, mr := newRegistry(t, nil)
	reg.Breaker = resilience.NewBreaker(2, 0.5, time.Minute).WithTarget("barcode-test")
	ctx := context.Background()

	mr.SetError("ERR injected failure")
	_, err := reg.Issue(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, barcode.ErrUnavailable)
	_, err = reg.Issue(ctx)
	require.Error(t, err)

	mr.SetError("")
	_, err = reg.Issue(ctx)
	require.ErrorIs(t, err, barcode.ErrUnavailable)
	_, err = reg.Reserved(ctx, "7751234567892")
	require.ErrorIs(t, err, barcode.ErrUnavailable)
}
