package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-asppay/internal/common"
	"github.com/noah-isme/toko-asppay/internal/lock"
	"github.com/noah-isme/toko-asppay/internal/order"
	"github.com/noah-isme/toko-asppay/internal/resilience"
	"github.com/noah-isme/toko-asppay/internal/session"
)

// Handler exposes the shopper redirect and processor callback endpoints.
type Handler struct {
	Gateway *Gateway
}

// Deposit serves GET /wc-api/asp-payment?id=<order_id>.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Gateway == nil {
		common.Text(w, http.StatusServiceUnavailable, "Payment unavailable")
		return
	}
	sid, _ := session.ID(r.Context())
	html, err := h.Gateway.Deposit(r.Context(), sid, r.URL.Query().Get("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionMismatch):
			common.Text(w, http.StatusBadRequest, "Invalid Request")
		case errors.Is(err, order.ErrNotFound):
			common.Text(w, http.StatusNotFound, "Order not found")
		case errors.Is(err, ErrGatewayUnavailable):
			common.Text(w, http.StatusServiceUnavailable, "Payment unavailable")
		case errors.Is(err, resilience.ErrOpenCircuit):
			common.Text(w, http.StatusBadGateway, "Payment processor unavailable")
		default:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("asppay deposit")
			common.Text(w, http.StatusBadGateway, "Payment processor unavailable")
		}
		return
	}
	common.HTML(w, http.StatusOK, html)
}

// Callback serves POST /wc-api/payment-success. The payload is trusted as is: the
// processor does not sign callbacks.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Gateway == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unable to read body", nil)
		return
	}
	cb, err := ParseCallback(body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_CALLBACK", err.Error(), nil)
		return
	}
	sid, _ := session.ID(r.Context())
	if _, err := h.Gateway.Reconcile(r.Context(), cb, sid); err != nil {
		switch {
		case errors.Is(err, ErrInvalidReference):
			common.JSONError(w, http.StatusBadRequest, "INVALID_REFERENCE", "merchant reference cannot be decoded", nil)
		case errors.Is(err, order.ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
		case errors.Is(err, lock.ErrNotAcquired):
			common.JSONError(w, http.StatusConflict, "CALLBACK_IN_PROGRESS", "order is being updated, retry later", nil)
		default:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("asppay callback")
			common.JSONError(w, http.StatusInternalServerError, "CALLBACK_FAILED", "unable to apply callback", nil)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
