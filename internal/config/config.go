package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	SiteURL            string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	SessionTTL          time.Duration
	SessionCookieName   string
	SessionCookieDomain string
	SessionCookieSecure bool
	SessionSameSite     http.SameSite

	DepositTimeout     time.Duration
	AspPayIconURL      string
	ReferenceSalt      string
	BreakerMinRequests int
	BreakerOpenFor     time.Duration

	AdminUser         string
	AdminPasswordHash string

	WebhookRateLimit    string
	WebhookMaxBodyBytes int64

	TaskQueue    string
	TaskMaxRetry int
	TaskInline   bool

	LogFormat              string
	LogLevel               string
	MetricsNamespace       string
	MetricsEnabled         bool
	MetricsBucketsMS       string
	TracingEnabled         bool
	TracingExporter        string
	TracingEndpoint        string
	TracingSamplingRatio   float64
	SecurityHeadersEnabled bool
	HSTSEnabled            bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	appEnv := valueOrDefault(k.String("APP_ENV"), "development")
	cfg := &Config{
		AppEnv:             appEnv,
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		SiteURL:            strings.TrimRight(strings.TrimSpace(k.String("SITE_URL")), "/"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		SessionTTL:          parseDuration(k.String("SESSION_TTL"), "48h"),
		SessionCookieName:   valueOrDefault(k.String("SESSION_COOKIE_NAME"), "toko_session"),
		SessionCookieDomain: strings.TrimSpace(k.String("SESSION_COOKIE_DOMAIN")),
		SessionCookieSecure: parseBoolDefault(k.String("SESSION_COOKIE_SECURE"), appEnv == "production"),
		SessionSameSite:     parseSameSite(k.String("SESSION_COOKIE_SAMESITE")),

		DepositTimeout:     parseDuration(k.String("ASPPAY_DEPOSIT_TIMEOUT"), "200s"),
		AspPayIconURL:      strings.TrimSpace(k.String("ASPPAY_ICON_URL")),
		ReferenceSalt:      k.String("ASPPAY_REFERENCE_SALT"),
		BreakerMinRequests: parseInt(k.String("ASPPAY_BREAKER_MIN_REQUESTS"), 5),
		BreakerOpenFor:     parseDuration(k.String("ASPPAY_BREAKER_OPEN_FOR"), "30s"),

		AdminUser:         strings.TrimSpace(k.String("ADMIN_USER")),
		AdminPasswordHash: strings.TrimSpace(k.String("ADMIN_PASSWORD_HASH")),

		WebhookRateLimit:    valueOrDefault(k.String("WEBHOOK_RATE_LIMIT"), "120-M"),
		WebhookMaxBodyBytes: int64(parseInt(k.String("WEBHOOK_MAX_BODY_BYTES"), 64<<10)),

		TaskQueue:    valueOrDefault(k.String("TASK_QUEUE"), "default"),
		TaskMaxRetry: parseInt(k.String("TASK_MAX_RETRY"), 10),
		TaskInline:   parseBool(k.String("TASK_INLINE")),

		LogFormat:              valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:               valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:       valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko"),
		MetricsEnabled:         parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsBucketsMS:       k.String("OBS_METRICS_BUCKETS_MS"),
		TracingEnabled:         parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
		TracingExporter:        valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		TracingEndpoint:        strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSamplingRatio:   parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		SecurityHeadersEnabled: parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),
		HSTSEnabled:            parseBoolDefault(k.String("SECURITY_HSTS_ENABLED"), appEnv == "production"),
	}

	if cfg.SessionSameSite == http.SameSiteDefaultMode {
		cfg.SessionSameSite = http.SameSiteLaxMode
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.SiteURL == "" {
		return nil, errors.New("SITE_URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.SiteURL); err != nil {
		return nil, fmt.Errorf("SITE_URL: %w", err)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
