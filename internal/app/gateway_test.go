package app

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-asppay/internal/config"
	"github.com/noah-isme/toko-asppay/internal/payment"
)

func testConfig() *config.Config {
	return &config.Config{
		SiteURL:        "https://shop.example",
		RedisURL:       "redis://localhost:6379/0",
		DepositTimeout: 200 * time.Second,
		TaskQueue:      "default",
		TaskMaxRetry:   3,
		ReferenceSalt:  "",
		AspPayIconURL:  "https://shop.example/icons/asppay.png",
	}
}

func TestStockQueueFallsBackInline(t *testing.T) {
	d := &Dependencies{}
	q := d.StockQueue(testConfig())
	require.Nil(t, q.Client)
	require.NotNil(t, q.Inline)

	d.Tasks = asynq.NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:0"})
	defer func() { _ = d.Tasks.Close() }()
	q = d.StockQueue(testConfig())
	require.NotNil(t, q.Client)
	require.Equal(t, "default", q.Queue)
}

func TestNewGateway(t *testing.T) {
	cfg := testConfig()
	g := NewGateway(cfg, &Dependencies{}, zerolog.Nop())
	require.Equal(t, payment.GatewayID, g.ID())
	require.Equal(t, "https://shop.example", g.SiteURL)
	require.Equal(t, "https://shop.example/wc-api/asp-payment?id=5", g.RedirectURL(5))
	require.NotNil(t, g.Locks)
	require.NotNil(t, g.Events)

	client := NewDepositClient(cfg, zerolog.Nop())
	require.Equal(t, 200*time.Second, client.HTTP.Timeout)
	require.NotNil(t, client.HTTP.Breaker)
}
