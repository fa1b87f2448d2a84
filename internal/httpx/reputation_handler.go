package httpx

import (
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/ratings"
	"github.com/go-chi/chi/v5"
)

type ReputationHandler struct {
	Ledger *ratings.Ledger
}

func (h *ReputationHandler) Register(r chi.Router) {
	r.Get("/businesses/{id}/reputation", h.business)
	r.Get("/users/{id}/reputation", h.buyer)
}

func (h *ReputationHandler) business(w http.ResponseWriter, r *http.Request) {
	a, err := h.Ledger.BusinessReputation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *ReputationHandler) buyer(w http.ResponseWriter, r *http.Request) {
	a, err := h.Ledger.BuyerReputation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type DiscrepancyHandler struct {
	Log inventory.DiscrepancyLog
}

func (h *DiscrepancyHandler) Register(r chi.Router) {
	r.Get("/admin/discrepancies", h.list)
}

func (h *DiscrepancyHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	list, err := h.Log.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
