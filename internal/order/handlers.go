package order

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-asppay/internal/common"
)

// Handler serves the shopper-facing order confirmation endpoint.
type Handler struct {
	Store Reader
}

type receivedResp struct {
	ID           int64  `json:"id"`
	Status       Status `json:"status"`
	Total        string `json:"total"`
	Currency     string `json:"currency"`
	NeedsPayment bool   `json:"needsPayment"`
}

// Received returns the order summary shown after the shopper returns from the
// payment page. The order key from the query string must match.
func (h *Handler) Received(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "orderID")), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(ord.OrderKey)) != 1 {
		common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, receivedResp{
		ID:           ord.ID,
		Status:       ord.Status,
		Total:        ord.Total,
		Currency:     ord.Currency,
		NeedsPayment: ord.NeedsPayment(),
	})
}
