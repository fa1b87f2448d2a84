package httpx

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// API bundles the handlers served by cmd/api.
type API struct {
	Cart          *CartHandler
	Orders        *OrdersHandler
	Reputation    *ReputationHandler
	Discrepancies *DiscrepancyHandler
	Verifier      TokenVerifier
	Log           zerolog.Logger
}

func (a *API) Routes() *chi.Mux {
	r := NewRouter(a.Log)
	a.Reputation.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(a.Verifier))
		a.Cart.Register(r)
		a.Orders.Register(r)
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			a.Discrepancies.Register(r)
		})
	})
	return r
}
