package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-asppay/internal/common"
)

// AdminHandler exposes order inspection and manual status changes to operators.
type AdminHandler struct {
	Store Store
}

type patchStatusReq struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// Get returns the order together with its note history.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	ord, err := h.Store.Get(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	notes, err := h.Store.Notes(r.Context(), id)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load notes", nil)
		return
	}
	if notes == nil {
		notes = []Note{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"order": ord, "notes": notes})
}

// PatchStatus updates the order status and optionally records a note.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req patchStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	status := Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		common.JSONError(w, http.StatusBadRequest, "INVALID_STATUS", "unknown status", nil)
		return
	}
	if err := h.Store.UpdateStatus(r.Context(), id, status); err != nil {
		writeStoreError(w, err)
		return
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		if err := h.Store.AddNote(r.Context(), id, note); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "orderID")), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return 0, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
}
