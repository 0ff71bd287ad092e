package checkout

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-asppay/internal/common"
	"github.com/noah-isme/toko-asppay/internal/obs"
)

// SessionEnsurer starts a shopper session when the request has none.
type SessionEnsurer interface {
	Ensure(w http.ResponseWriter, r *http.Request) (string, *http.Request)
}

// Handler exposes checkout payment endpoints.
type Handler struct {
	Registry *Registry
	Sessions SessionEnsurer
}

type payReq struct {
	PaymentMethod string `json:"paymentMethod"`
}

// PaymentMethods lists the payment methods offered at checkout.
func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout not configured", nil)
		return
	}
	methods, err := h.Registry.Available(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_METHODS_FAILED", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": methods})
}

// Pay processes payment for an order with the chosen method and returns the
// redirect the shopper should follow.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Registry == nil || h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout not configured", nil)
		return
	}
	orderID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "orderID")), 10, 64)
	if err != nil || orderID <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req payReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = strings.TrimSpace(r.URL.Query().Get("method"))
	}
	if method == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "paymentMethod is required", nil)
		return
	}
	label := "unknown"
	if _, ok := h.Registry.Get(method); ok {
		label = normaliseID(method)
	}
	sid, r := h.Sessions.Ensure(w, r)
	res, err := h.Registry.Pay(r.Context(), method, sid, orderID)
	if err != nil {
		obs.IncCheckoutRedirect(label, "error")
		common.WriteAppError(w, err)
		return
	}
	obs.IncCheckoutRedirect(label, res.Result)
	common.JSON(w, http.StatusOK, res)
}
