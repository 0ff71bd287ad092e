package app

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-asppay/internal/cart"
	"github.com/noah-isme/toko-asppay/internal/config"
	"github.com/noah-isme/toko-asppay/internal/events"
	"github.com/noah-isme/toko-asppay/internal/lock"
	"github.com/noah-isme/toko-asppay/internal/obs"
	"github.com/noah-isme/toko-asppay/internal/payment"
	"github.com/noah-isme/toko-asppay/internal/resilience"
	"github.com/noah-isme/toko-asppay/internal/session"
	"github.com/noah-isme/toko-asppay/internal/tasks"
)

// Sessions returns the Redis checkout session store.
func (d *Dependencies) Sessions(cfg *config.Config) session.Store {
	return session.Store{R: d.Redis, TTL: cfg.SessionTTL}
}

// Carts returns the Redis cart service.
func (d *Dependencies) Carts(cfg *config.Config) *cart.Service {
	return &cart.Service{R: d.Redis, TTL: cfg.SessionTTL}
}

// StockQueue schedules stock reduction on asynq, or inline when no task client is
// configured.
func (d *Dependencies) StockQueue(cfg *config.Config) tasks.StockQueue {
	q := tasks.StockQueue{Inline: d.Orders(), Queue: cfg.TaskQueue, MaxRetry: cfg.TaskMaxRetry, Timeout: time.Minute}
	if d.Tasks != nil {
		q.Client = d.Tasks
	}
	return q
}

// Events returns the payment event bus over the payment_events table.
func (d *Dependencies) Events(logger zerolog.Logger) *events.Bus {
	return &events.Bus{
		Store:     events.PGStore{DB: d.DB},
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}
}

// NewDepositClient builds the processor client: one attempt, traced transport,
// circuit breaker, configured timeout.
func NewDepositClient(cfg *config.Config, logger zerolog.Logger) payment.DepositClient {
	timeout := cfg.DepositTimeout
	if timeout <= 0 {
		timeout = payment.DefaultDepositTimeout
	}
	return payment.DepositClient{HTTP: resilience.HTTPClient{
		Client: &http.Client{Transport: obs.Transport(nil), Timeout: timeout},
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Target:      "asppay-deposit",
			MinRequests: cfg.BreakerMinRequests,
			OpenFor:     cfg.BreakerOpenFor,
			Logger:      &logger,
		}),
		Timeout: timeout,
	}}
}

// NewGateway assembles the AsianSuperPay gateway over the shared dependencies.
func NewGateway(cfg *config.Config, d *Dependencies, logger zerolog.Logger) *payment.Gateway {
	return &payment.Gateway{
		Settings:  d.GatewaySettings(),
		Orders:    d.Orders(),
		Sessions:  d.Sessions(cfg),
		Carts:     d.Carts(cfg),
		Stock:     d.StockQueue(cfg),
		Depositor: NewDepositClient(cfg, logger),
		Locks:     lock.Locker{R: d.Redis, Wait: 10 * time.Second},
		Events:    d.Events(logger),
		Codec:     payment.ReferenceCodec{Salt: cfg.ReferenceSalt},
		SiteURL:   cfg.SiteURL,
		IconURL:   cfg.AspPayIconURL,
		Logger:    logger.With().Str("gateway", payment.GatewayID).Logger(),
	}
}
