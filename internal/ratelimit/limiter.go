package ratelimit

import (
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// DefaultRate is applied when no rate is configured.
const DefaultRate = "120-M"

// NewRedisStore returns a limiter store backed by Redis.
func NewRedisStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	if prefix == "" {
		prefix = "ratelimit"
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("ratelimit store: %w", err)
	}
	return store, nil
}

// New builds a limiter for a formatted rate such as "120-M".
func New(store limiter.Store, rate string) (*limiter.Limiter, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		rate = DefaultRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("ratelimit rate %q: %w", rate, err)
	}
	return limiter.New(store, parsed), nil
}
