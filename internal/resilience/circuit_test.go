package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/optica-pos/internal/resilience"
)

func TestBreakerTransitions(t *testing.T) {
	breaker := resilience.NewBreaker(2, 0.5, 50*time.Millisecond)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.False(t, breaker.Allow(ctx), "breaker should open after threshold exceeded")
	require.Equal(t, resilience.Open, breaker.State())

	time.Sleep(60 * time.Millisecond)
	require.True(t, breaker.Allow(ctx), "breaker should move to half-open after cool off")
	require.Equal(t, resilience.HalfOpen, breaker.State())
	breaker.Report(ctx, true)
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestBreakerDo(t *testing.T) {
	breaker := resilience.NewBreaker(3, 0.6, time.Minute)
	ctx := context.Background()
	boom := errors.New("boom")
	miss := errors.New("miss")

	require.ErrorIs(t, breaker.Do(ctx, func(context.Context) error { return miss }, miss), miss)
	require.ErrorIs(t, breaker.Do(ctx, func(context.Context) error { return context.Canceled }), context.Canceled)
	require.Equal(t, resilience.Closed, breaker.State(), "benign and cancelled errors do not trip")

	require.ErrorIs(t, breaker.Do(ctx, func(context.Context) error { return boom }), boom)
	require.ErrorIs(t, breaker.Do(ctx, func(context.Context) error { return boom }), boom)
	require.Equal(t, resilience.Open, breaker.State())

	called := false
	err := breaker.Do(ctx, func(context.Context) error { called = true; return nil })
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.False(t, called)
}

func TestNilBreakerAllows(t *testing.T) {
	var breaker *resilience.Breaker
	ctx := context.Background()
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.NoError(t, breaker.Do(ctx, func(context.Context) error { return nil }))
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestBreakerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	resilience.MustRegisterMetrics("test", reg)

	breaker := resilience.NewBreaker(1, 0.5, time.Minute).WithTarget("redis-metrics")
	breaker.Report(context.Background(), false)

	require.Equal(t, float64(1), testutil.ToFloat64(resilience.BreakerState.WithLabelValues("redis-metrics")))
	require.Equal(t, float64(1), testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues("redis-metrics")))
	require.Equal(t, float64(1), testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("redis-metrics", "closed", "open")))
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))

	d := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-base*2/5)
	require.LessOrEqual(t, d, base*2+base*2/5)
}
