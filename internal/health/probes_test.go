package health_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-asppay/internal/health"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestProbes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	var sawDeadline bool
	probes := health.Probes{
		DB: pingFunc(func(ctx context.Context) error {
			_, sawDeadline = ctx.Deadline()
			return nil
		}),
		Redis: rdb,
	}
	require.NoError(t, probes.PingDB(context.Background(), time.Second))
	require.True(t, sawDeadline)
	require.NoError(t, probes.PingRedis(context.Background(), time.Second))

	mr.Close()
	require.Error(t, probes.PingRedis(context.Background(), 100*time.Millisecond))

	probes.DB = pingFunc(func(context.Context) error { return errors.New("down") })
	require.Error(t, probes.PingDB(context.Background(), time.Second))
	require.Error(t, health.Probes{}.PingDB(context.Background(), time.Second))
	require.Error(t, health.Probes{}.PingRedis(context.Background(), time.Second))
}
