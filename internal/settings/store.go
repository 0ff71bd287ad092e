package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/toko-asppay/internal/payment"
)

// DBTX is the subset of pgxpool.Pool used by Store.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists gateway options as key/value rows.
type Store struct {
	DB        DBTX
	GatewayID string
	// Defaults seeds options that have never been saved.
	Defaults payment.Settings
}

func (s Store) gatewayID() string {
	if s.GatewayID == "" {
		return payment.GatewayID
	}
	return s.GatewayID
}

// Load returns the stored settings merged over the defaults.
func (s Store) Load(ctx context.Context) (payment.Settings, error) {
	rows, err := s.DB.Query(ctx, `SELECT key, value FROM gateway_settings WHERE gateway_id = $1`, s.gatewayID())
	if err != nil {
		return payment.Settings{}, fmt.Errorf("load gateway settings: %w", err)
	}
	values := map[string]string{}
	var key, value string
	_, err = pgx.ForEachRow(rows, []any{&key, &value}, func() error {
		values[key] = value
		return nil
	})
	if err != nil {
		return payment.Settings{}, fmt.Errorf("load gateway settings: %w", err)
	}
	return FromOptions(s.Defaults, values), nil
}

// Save replaces the stored options in a single transaction.
func (s Store) Save(ctx context.Context, cfg payment.Settings) error {
	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		for key, value := range ToOptions(cfg) {
			if _, err := tx.Exec(ctx, `INSERT INTO gateway_settings (gateway_id, key, value)
				VALUES ($1, $2, $3)
				ON CONFLICT (gateway_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
				s.gatewayID(), key, value); err != nil {
				return fmt.Errorf("save gateway setting %s: %w", key, err)
			}
		}
		return nil
	})
}

// ToOptions flattens settings into the stored option keys.
func ToOptions(cfg payment.Settings) map[string]string {
	return map[string]string{
		"enabled":      yesNo(cfg.Enabled),
		"title":        cfg.Title,
		"description":  cfg.Description,
		"livemode":     yesNo(cfg.LiveMode),
		"merchant_id":  cfg.MerchantID,
		"merchant_key": cfg.MerchantKey,
		"currency":     cfg.Currency,
	}
}

// FromOptions applies stored option values over base.
func FromOptions(base payment.Settings, values map[string]string) payment.Settings {
	cfg := base
	if v, ok := values["enabled"]; ok {
		cfg.Enabled = parseYes(v)
	}
	if v, ok := values["title"]; ok {
		cfg.Title = v
	}
	if v, ok := values["description"]; ok {
		cfg.Description = v
	}
	if v, ok := values["livemode"]; ok {
		cfg.LiveMode = parseYes(v)
	}
	if v, ok := values["merchant_id"]; ok {
		cfg.MerchantID = strings.TrimSpace(v)
	}
	if v, ok := values["merchant_key"]; ok {
		cfg.MerchantKey = strings.TrimSpace(v)
	}
	if v, ok := values["currency"]; ok && strings.TrimSpace(v) != "" {
		cfg.Currency = strings.ToUpper(strings.TrimSpace(v))
	}
	return cfg
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func parseYes(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "on":
		return true
	}
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}
