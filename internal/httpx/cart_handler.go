package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/checkout"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	idemPending          = "pending"
)

type CartHandler struct {
	Carts       *checkout.Carts
	Coordinator *checkout.Coordinator
	Cache       redisx.Cache
}

type cartItemReq struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type checkoutResp struct {
	Orders []orders.Order `json:"orders"`
	Replay bool           `json:"replay,omitempty"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.get)
	r.Delete("/cart", h.clear)
	r.Post("/cart/items", h.add)
	r.Put("/cart/items/{itemID}", h.update)
	r.Delete("/cart/items/{itemID}", h.remove)
	r.Post("/cart/checkout", h.checkout)
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	v, err := h.Carts.Get(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ItemID == "" {
		writeError(w, r, apperr.New(apperr.InvalidInput, "item_id is required"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	v, err := h.Carts.Add(r.Context(), caller(r), req.ItemID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) {
	var req cartItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.Carts.Update(r.Context(), caller(r), chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	v, err := h.Carts.Remove(r.Context(), caller(r), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Carts.Clear(r.Context(), caller(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkout honours an optional Idempotency-Key: a concurrent duplicate gets
// 409 and a later duplicate gets the first result back.
func (h *CartHandler) checkout(w http.ResponseWriter, r *http.Request) {
	buyer := caller(r)
	key := r.Header.Get(HeaderIdempotencyKey)
	if key == "" || h.Cache == nil {
		h.run(w, r, buyer, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	idem := redisx.IdemCheckout(buyer, key)
	claimed, err := h.Cache.Claim(ctx, idem, idemPending, redisx.TTLIdempotency)
	if err != nil {
		// the guard is an optimisation; the reservation CAS still holds
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("idempotency guard unavailable")
		h.run(w, r, buyer, "")
		return
	}
	if claimed {
		h.run(w, r, buyer, idem)
		return
	}

	prev, ok, err := h.Cache.Get(ctx, idem)
	if err != nil || !ok || prev == idemPending {
		writeError(w, r, apperr.New(apperr.Conflict, "checkout with this idempotency key is already in progress"))
		return
	}
	var resp checkoutResp
	if err := json.Unmarshal([]byte(prev), &resp.Orders); err != nil {
		writeError(w, r, apperr.New(apperr.Conflict, "checkout with this idempotency key already ran"))
		return
	}
	resp.Replay = true
	writeJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) run(w http.ResponseWriter, r *http.Request, buyer, idem string) {
	created, err := h.Coordinator.Checkout(r.Context(), buyer)
	// the request may be gone; the guard update must still land
	ctx := context.WithoutCancel(r.Context())
	if err != nil {
		if idem != "" {
			_ = h.Cache.Del(ctx, idem)
		}
		writeError(w, r, err)
		return
	}
	if idem != "" {
		b, _ := json.Marshal(created)
		if err := h.Cache.Set(ctx, idem, string(b), redisx.TTLIdempotency); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("idempotency result not stored")
		}
	}
	for i := range created {
		cacheStatus(ctx, h.Cache, &created[i])
	}
	writeJSON(w, http.StatusCreated, checkoutResp{Orders: created})
}
