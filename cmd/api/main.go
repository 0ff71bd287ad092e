package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-asppay/internal/app"
	"github.com/noah-isme/toko-asppay/internal/cart"
	"github.com/noah-isme/toko-asppay/internal/checkout"
	"github.com/noah-isme/toko-asppay/internal/common"
	"github.com/noah-isme/toko-asppay/internal/config"
	"github.com/noah-isme/toko-asppay/internal/health"
	"github.com/noah-isme/toko-asppay/internal/obs"
	"github.com/noah-isme/toko-asppay/internal/order"
	"github.com/noah-isme/toko-asppay/internal/payment"
	"github.com/noah-isme/toko-asppay/internal/ratelimit"
	"github.com/noah-isme/toko-asppay/internal/security"
	"github.com/noah-isme/toko-asppay/internal/session"
	"github.com/noah-isme/toko-asppay/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "toko-asppay-api",
			Endpoint:      cfg.TracingEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("init tracer")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBucketsMS), nil)
	}

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	deps, err := app.Open(openCtx, cfg, logger, app.Options{ApplicationName: "toko-asppay-api", Migrate: true, Metrics: cfg.MetricsEnabled})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	limiterStore, err := ratelimit.NewRedisStore(deps.Redis, "ratelimit:webhook")
	if err != nil {
		logger.Fatal().Err(err).Msg("rate limit store")
	}
	webhookLimiter, err := ratelimit.New(limiterStore, cfg.WebhookRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("rate limit")
	}

	sessions := session.Middleware{Cookie: session.Cookie{
		Name:     cfg.SessionCookieName,
		Domain:   cfg.SessionCookieDomain,
		Secure:   cfg.SessionCookieSecure,
		SameSite: cfg.SessionSameSite,
		TTL:      cfg.SessionTTL,
	}}
	gateway := app.NewGateway(cfg, deps, logger)
	registry := checkout.NewRegistry(gateway)
	orders := deps.Orders()
	carts := deps.Carts(cfg)

	h := handlers{
		checkout: &checkout.Handler{Registry: registry, Sessions: sessions},
		payment:  &payment.Handler{Gateway: gateway},
		cart:     &cart.Handler{Svc: carts, Sessions: sessions},
		order:    &order.Handler{Store: orders},
		orderAdm: &order.AdminHandler{Store: orders},
		settings: &settings.AdminHandler{Repo: deps.GatewaySettings(), Logger: logger},
		health: health.Handler{
			Checker: health.Probes{DB: deps.DB, Redis: deps.Redis},
		},
	}

	r := newRouter(cfg, logger, httpMetrics, sessions, h, routerDeps{
		idem:    common.Idem{R: deps.Redis, TTL: 24 * time.Hour},
		limiter: ratelimit.Handler{Limiter: webhookLimiter, OnError: func(err error) { logger.Warn().Err(err).Msg("webhook rate limit") }},
		admin:   security.BasicAuth{Realm: "toko-asppay admin", User: cfg.AdminUser, PasswordHash: cfg.AdminPasswordHash},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// the deposit relay waits on the processor for up to the deposit timeout
		WriteTimeout: cfg.DepositTimeout + 10*time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

type handlers struct {
	checkout *checkout.Handler
	payment  *payment.Handler
	cart     *cart.Handler
	order    *order.Handler
	orderAdm *order.AdminHandler
	settings *settings.AdminHandler
	health   health.Handler
}

type routerDeps struct {
	idem    common.Idem
	limiter ratelimit.Handler
	admin   security.BasicAuth
}

func newRouter(cfg *config.Config, logger zerolog.Logger, metrics *obs.HTTPMetrics, sessions session.Middleware, h handlers, d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.TracingEnabled {
		r.Use(obs.Tracing)
	}
	if metrics != nil {
		r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	}
	// the session has to be on the context before the request logger reads it
	r.Use(sessions.Handler)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:                cfg.SecurityHeadersEnabled,
		EnableHSTS:            cfg.HSTSEnabled,
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", h.health.Live)
	r.Get("/health/ready", h.health.Ready)

	r.Route("/wc-api", func(wc chi.Router) {
		wc.Use(security.Headers{Enable: true, NoStore: true}.Middleware)
		wc.Get("/asp-payment", h.payment.Deposit)
		wc.With(
			d.limiter.Middleware,
			security.BodyLimit{Max: cfg.WebhookMaxBodyBytes}.Middleware,
		).Post("/payment-success", h.payment.Callback)
	})

	r.Route("/cart", func(c chi.Router) {
		c.Get("/", h.cart.Get)
		c.Post("/items", h.cart.AddItem)
		c.Delete("/", h.cart.Clear)
	})

	r.Route("/checkout", func(c chi.Router) {
		c.Get("/payment-methods", h.checkout.PaymentMethods)
		c.With(d.idem.Middleware).Post("/orders/{orderID}/pay", h.checkout.Pay)
		c.Get("/order-received/{orderID}", h.order.Received)
		c.Get("/order-received/{orderID}/", h.order.Received)
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(d.admin.Middleware)
		admin.Get("/gateways/asppay/settings", h.settings.Get)
		admin.Put("/gateways/asppay/settings", h.settings.Update)
		admin.Get("/orders/{orderID}", h.orderAdm.Get)
		admin.Patch("/orders/{orderID}/status", h.orderAdm.PatchStatus)
	})
	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{cfg.SiteURL}
	}
	return cfg.CORSAllowedOrigins
}
