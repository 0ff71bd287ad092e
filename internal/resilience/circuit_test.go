package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-asppay/internal/resilience"
)

func TestBreakerTransitions(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "transitions",
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenFor:      50 * time.Millisecond,
	})
	ctx := context.Background()

	require.NoError(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.NoError(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.ErrorIs(t, breaker.Allow(ctx), resilience.ErrOpenCircuit, "breaker should open after threshold exceeded")
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("transitions")))

	require.Eventually(t, func() bool {
		return breaker.Allow(ctx) == nil
	}, time.Second, 10*time.Millisecond, "breaker should move to half-open after cool off")
	require.Equal(t, resilience.HalfOpen, breaker.State())

	breaker.Report(ctx, true)
	require.Equal(t, resilience.Closed, breaker.State())
	require.NoError(t, breaker.Allow(ctx))

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("transitions", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("transitions", "half_open", "closed")))
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:      "reopen",
		MinRequests: 1,
		OpenFor:     20 * time.Millisecond,
	})
	ctx := context.Background()

	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())

	require.Eventually(t, func() bool {
		return breaker.Allow(ctx) == nil
	}, time.Second, 5*time.Millisecond)
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
}

func TestBreakerStaysClosedBelowRatio(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Target: "ratio", MinRequests: 4, FailureRatio: 0.75})
	ctx := context.Background()
	for _, ok := range []bool{true, false, true, false, true, false} {
		require.NoError(t, breaker.Allow(ctx))
		breaker.Report(ctx, ok)
	}
	require.Equal(t, resilience.Closed, breaker.State())
}
