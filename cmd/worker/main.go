package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-asppay/internal/app"
	"github.com/noah-isme/toko-asppay/internal/config"
	"github.com/noah-isme/toko-asppay/internal/obs"
	"github.com/noah-isme/toko-asppay/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	deps, err := app.Open(openCtx, cfg, logger, app.Options{ApplicationName: "toko-asppay-worker"})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	connOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse task queue redis url")
	}
	srv := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: 4,
		Queues:      map[string]int{cfg.TaskQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})
	mux := tasks.NewServeMux(tasks.StockHandler{Orders: deps.Orders(), Logger: logger})

	logger.Info().Str("queue", cfg.TaskQueue).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker stopped")
}
