package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-asppay/internal/config"
	"github.com/noah-isme/toko-asppay/internal/db"
	"github.com/noah-isme/toko-asppay/internal/obs"
	"github.com/noah-isme/toko-asppay/internal/order"
	"github.com/noah-isme/toko-asppay/internal/payment"
	"github.com/noah-isme/toko-asppay/internal/settings"
)

// Dependencies holds the connections shared by the API and the worker.
type Dependencies struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
	Tasks *asynq.Client
}

// Options tunes Open.
type Options struct {
	ApplicationName string
	Migrate         bool
	Metrics         bool
}

// Open connects to PostgreSQL and Redis, instruments both and optionally applies
// migrations.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if opts.Migrate {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if opts.ApplicationName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if opts.Metrics {
		if err := redisotel.InstrumentMetrics(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	deps := &Dependencies{DB: pool, Redis: rdb}
	if !cfg.TaskInline {
		connOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("parse task queue redis url: %w", err)
		}
		deps.Tasks = asynq.NewClient(connOpt)
	}
	return deps, nil
}

// Close releases every connection.
func (d *Dependencies) Close() error {
	var firstErr error
	if d.Tasks != nil {
		if err := d.Tasks.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return firstErr
}

// Orders returns the PostgreSQL order store.
func (d *Dependencies) Orders() *order.PGStore {
	return order.NewPGStore(d.DB)
}

// GatewaySettings returns the persistent gateway settings store.
func (d *Dependencies) GatewaySettings() settings.Store {
	return settings.Store{DB: d.DB, GatewayID: payment.GatewayID, Defaults: payment.DefaultSettings()}
}
