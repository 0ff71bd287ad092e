package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/toko-asppay/internal/common"
	"github.com/noah-isme/toko-asppay/internal/session"
)

// SessionEnsurer starts a shopper session when the request has none.
type SessionEnsurer interface {
	Ensure(w http.ResponseWriter, r *http.Request) (string, *http.Request)
}

// Handler exposes the session cart.
type Handler struct {
	Svc      *Service
	Sessions SessionEnsurer
}

type addItemReq struct {
	ProductID string `json:"productId"`
	Qty       int64  `json:"qty"`
}

// Get returns the current session cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart not configured", nil)
		return
	}
	sid, ok := session.ID(r.Context())
	if !ok {
		common.JSON(w, http.StatusOK, map[string]any{"items": []Item{}})
		return
	}
	items, err := h.Svc.Items(r.Context(), sid)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "CART_ERROR", err.Error(), nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"items": items})
}

// AddItem adds a product to the session cart, starting a session if required.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil || h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart not configured", nil)
		return
	}
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	sid, r := h.Sessions.Ensure(w, r)
	if err := h.Svc.Add(r.Context(), sid, req.ProductID, req.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear empties the session cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart not configured", nil)
		return
	}
	if sid, ok := session.ID(r.Context()); ok {
		if err := h.Svc.Empty(r.Context(), sid); err != nil {
			h.writeError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidItem) {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ITEM", "productId and positive qty are required", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "CART_ERROR", err.Error(), nil)
}
