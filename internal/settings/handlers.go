package settings

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-asppay/internal/common"
	"github.com/noah-isme/toko-asppay/internal/payment"
)

// Repository loads and saves gateway settings.
type Repository interface {
	Load(ctx context.Context) (payment.Settings, error)
	Save(ctx context.Context, cfg payment.Settings) error
}

// AdminHandler exposes the gateway options to operators.
type AdminHandler struct {
	Repo   Repository
	Logger zerolog.Logger
}

type settingsResp struct {
	Enabled     bool     `json:"enabled"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	LiveMode    bool     `json:"livemode"`
	Endpoint    string   `json:"endpoint"`
	MerchantID  string   `json:"merchant_id"`
	MerchantKey string   `json:"merchant_key"`
	Currency    string   `json:"currency"`
	Currencies  []string `json:"currencies"`
}

type updateReq struct {
	Enabled     *bool   `json:"enabled"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	LiveMode    *bool   `json:"livemode"`
	MerchantID  *string `json:"merchant_id"`
	MerchantKey *string `json:"merchant_key"`
	Currency    *string `json:"currency"`
}

// Get returns the current settings with the merchant key masked.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings store not configured", nil)
		return
	}
	cfg, err := h.Repo.Load(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "SETTINGS_LOAD_FAILED", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, toResp(cfg))
}

// Update applies a partial update, validates the result and saves it.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Repo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "settings store not configured", nil)
		return
	}
	var req updateReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	cfg, err := h.Repo.Load(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "SETTINGS_LOAD_FAILED", err.Error(), nil)
		return
	}
	cfg = req.apply(cfg)
	if err := cfg.Validate(); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_SETTINGS", err.Error(), nil)
		return
	}
	if err := h.Repo.Save(r.Context(), cfg); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "SETTINGS_SAVE_FAILED", err.Error(), nil)
		return
	}
	h.Logger.Info().
		Bool("enabled", cfg.Enabled).
		Bool("livemode", cfg.LiveMode).
		Str("currency", cfg.Currency).
		Msg("gateway_settings_updated")
	common.JSON(w, http.StatusOK, toResp(cfg))
}

func (req updateReq) apply(cfg payment.Settings) payment.Settings {
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Title != nil {
		cfg.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		cfg.Description = strings.TrimSpace(*req.Description)
	}
	if req.LiveMode != nil {
		cfg.LiveMode = *req.LiveMode
	}
	if req.MerchantID != nil {
		cfg.MerchantID = strings.TrimSpace(*req.MerchantID)
	}
	if req.MerchantKey != nil {
		cfg.MerchantKey = strings.TrimSpace(*req.MerchantKey)
	}
	if req.Currency != nil {
		cfg.Currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
	}
	return cfg
}

func toResp(cfg payment.Settings) settingsResp {
	return settingsResp{
		Enabled:     cfg.Enabled,
		Title:       cfg.Title,
		Description: cfg.Description,
		LiveMode:    cfg.LiveMode,
		Endpoint:    cfg.Endpoint(),
		MerchantID:  cfg.MerchantID,
		MerchantKey: mask(cfg.MerchantKey),
		Currency:    cfg.Currency,
		Currencies:  payment.SupportedCurrencies(),
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
