package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/ratings"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	Machine *orders.Machine
	Ledger  *ratings.Ledger
	Cache   redisx.Cache
}

type rateReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// statusEntry is the cached shape of GET /orders/{id}/status. Buyer and
// seller ids let a cache hit be authorised without a store read.
type statusEntry struct {
	OrderID    string        `json:"order_id"`
	Status     orders.Status `json:"status"`
	BuyerID    string        `json:"buyer_id"`
	BusinessID string        `json:"business_id,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders/mine", h.listMine)
	r.Get("/orders/selling", h.listSelling)
	r.Get("/orders/{id}", h.get)
	r.Get("/orders/{id}/status", h.status)
	r.Patch("/orders/{id}/ship", h.transition(h.Machine.Ship))
	r.Patch("/orders/{id}/keep", h.transition(h.Machine.ConfirmReceipt))
	r.Patch("/orders/{id}/return", h.transition(h.Machine.Return))
	r.Delete("/orders/{id}", h.delete)
	r.Post("/orders/{id}/rate-seller", h.rate(h.Ledger.RateSeller))
	r.Post("/orders/{id}/rate-buyer", h.rate(h.Ledger.RateBuyer))
}

func cacheStatus(ctx context.Context, c redisx.Cache, o *orders.Order) {
	if c == nil {
		return
	}
	b, _ := json.Marshal(statusEntry{
		OrderID:    o.ID,
		Status:     o.Status,
		BuyerID:    o.BuyerID,
		BusinessID: o.BusinessID,
		UpdatedAt:  o.UpdatedAt,
	})
	_ = c.Set(ctx, redisx.OrderStatus(o.ID), string(b), redisx.TTLStatusCache)
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	list, err := h.Machine.ListForBuyer(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) listSelling(w http.ResponseWriter, r *http.Request) {
	list, err := h.Machine.ListForSeller(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.Machine.Get(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	who := caller(r)

	if h.Cache != nil {
		if s, ok, err := h.Cache.Get(r.Context(), redisx.OrderStatus(id)); err == nil && ok {
			var e statusEntry
			if json.Unmarshal([]byte(s), &e) == nil && e.BuyerID == who {
				writeJSON(w, http.StatusOK, e)
				return
			}
		}
	}

	o, err := h.Machine.Get(r.Context(), who, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cacheStatus(r.Context(), h.Cache, o)
	writeJSON(w, http.StatusOK, statusEntry{
		OrderID: o.ID, Status: o.Status, BuyerID: o.BuyerID, BusinessID: o.BusinessID, UpdatedAt: o.UpdatedAt,
	})
}

func (h *OrdersHandler) transition(fn func(ctx context.Context, callerID, orderID string) (*orders.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := fn(r.Context(), caller(r), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		cacheStatus(context.WithoutCancel(r.Context()), h.Cache, o)
		writeJSON(w, http.StatusOK, o)
	}
}

func (h *OrdersHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Machine.Delete(r.Context(), caller(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	if h.Cache != nil {
		_ = h.Cache.Del(context.WithoutCancel(r.Context()), redisx.OrderStatus(id))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) rate(fn func(ctx context.Context, orderID, raterID string, score int, comment string) (orders.Rating, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rateReq
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		rating, err := fn(r.Context(), chi.URLParam(r, "id"), caller(r), req.Rating, req.Comment)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, rating)
	}
}
