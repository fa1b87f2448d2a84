package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/checkout"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/memstore"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/ratings"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	h      http.Handler
	v      *auth.Verifier
	stores *memstore.Stores
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	m := memstore.New()
	m.Businesses = memstore.NewBusinesses(orders.Business{ID: "biz1", OwnerID: "seller1", Name: "Yerba Co"})
	m.Catalog.Put(inventory.Item{ID: "cup", Name: "Mate cup", Stock: 2, PriceCents: 1000, Discount: 10, BusinessID: "biz1"})

	inv := &inventory.Service{Store: m.Catalog, Log: zerolog.Nop()}
	ledger := &ratings.Ledger{Orders: m.Orders, Store: m.Ratings, Businesses: m.Businesses, Log: zerolog.Nop()}
	v := &auth.Verifier{Secret: []byte("test")}
	api := &API{
		Cart: &CartHandler{
			Carts: &checkout.Carts{Store: m.Carts, Catalog: m.Catalog, Log: zerolog.Nop()},
			Coordinator: &checkout.Coordinator{
				Carts: m.Carts, Inventory: inv, Orders: m.Orders,
				Discrepancies: m.Discrepancies, CommitRetries: 1, Log: zerolog.Nop(),
			},
			Cache: m.Cache,
		},
		Orders: &OrdersHandler{
			Machine: &orders.Machine{
				Store: m.Orders, Inventory: inv, Products: m.Catalog,
				Businesses: m.Businesses, Discrepancies: m.Discrepancies, Log: zerolog.Nop(),
			},
			Ledger: ledger,
			Cache:  m.Cache,
		},
		Reputation:    &ReputationHandler{Ledger: ledger},
		Discrepancies: &DiscrepancyHandler{Log: m.Discrepancies},
		Verifier:      v,
		Log:           zerolog.Nop(),
	}
	return &testAPI{h: api.Routes(), v: v, stores: m}
}

func (a *testAPI) do(t *testing.T, method, path, user string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		role := ""
		if user == "admin" {
			role = auth.RoleAdmin
		}
		tok, err := a.v.Issue(user, role, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func errKind(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var out map[string]errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out["error"]
}

func TestHealthAndAuth(t *testing.T) {
	a := newTestAPI(t)

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/metrics", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/cart", "", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/cart", "buyer1", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/businesses/biz1/reputation", "", nil).Code)

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/admin/discrepancies", "buyer1", nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/admin/discrepancies", "admin", nil).Code)
}

func TestCheckoutFlow(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/cart/checkout", "buyer1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apperr.EmptyCart, errKind(t, rec).Kind)

	rec = a.do(t, http.MethodPost, "/cart/items", "buyer1", cartItemReq{ItemID: "cup", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/cart/checkout", "buyer1", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp checkoutResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Orders, 1)
	o := resp.Orders[0]
	assert.Equal(t, int64(1800), o.TotalCents)

	rec = a.do(t, http.MethodGet, "/orders/"+o.ID+"/status", "buyer1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st statusEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, orders.StatusPending, st.Status)

	rec = a.do(t, http.MethodPatch, "/orders/"+o.ID+"/ship", "buyer1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperr.Unauthorized, errKind(t, rec).Kind)

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPatch, "/orders/"+o.ID+"/ship", "seller1", nil).Code)
	require.Equal(t, http.StatusOK, a.do(t, http.MethodPatch, "/orders/"+o.ID+"/keep", "buyer1", nil).Code)

	rec = a.do(t, http.MethodGet, "/orders/"+o.ID+"/status", "buyer1", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, orders.StatusDelivered, st.Status, "cache refreshed on transition")

	rec = a.do(t, http.MethodPost, "/orders/"+o.ID+"/rate-seller", "buyer1", rateReq{Rating: 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.InvalidRatingScore, errKind(t, rec).Kind)

	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/orders/"+o.ID+"/rate-seller", "buyer1", rateReq{Rating: 5}).Code)
	rec = a.do(t, http.MethodPost, "/orders/"+o.ID+"/rate-seller", "buyer1", rateReq{Rating: 5})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperr.AlreadyRated, errKind(t, rec).Kind)

	rec = a.do(t, http.MethodGet, "/businesses/biz1/reputation", "", nil)
	var agg ratings.Aggregate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agg))
	assert.Equal(t, 1, agg.Count)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/orders/"+o.ID, "buyer1", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/orders/"+o.ID, "buyer1", nil).Code)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	a := newTestAPI(t)
	require.NoError(t, a.stores.Carts.Save(context.Background(), checkout.Cart{
		BuyerID: "buyer1",
		Lines:   []checkout.Line{{ItemID: "cup", Quantity: 3}},
	}))

	rec := a.do(t, http.MethodPost, "/cart/checkout", "buyer1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := errKind(t, rec)
	assert.Equal(t, apperr.InsufficientStock, body.Kind)
	assert.Equal(t, "Mate cup", body.Item)
	assert.Equal(t, 2, a.stores.Catalog.Stock("cup"))
}

func TestCheckoutIdempotencyKey(t *testing.T) {
	a := newTestAPI(t)
	ctx := context.Background()

	require.NoError(t, a.stores.Cache.Set(ctx, redisx.IdemCheckout("buyer1", "busy"), idemPending, time.Minute))
	rec := a.do(t, http.MethodPost, "/cart/checkout", "buyer1", nil, HeaderIdempotencyKey, "busy")
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/cart/items", "buyer1", cartItemReq{ItemID: "cup", Quantity: 1}).Code)
	first := a.do(t, http.MethodPost, "/cart/checkout", "buyer1", nil, HeaderIdempotencyKey, "k1")
	require.Equal(t, http.StatusCreated, first.Code)

	again := a.do(t, http.MethodPost, "/cart/checkout", "buyer1", nil, HeaderIdempotencyKey, "k1")
	require.Equal(t, http.StatusOK, again.Code)
	var a1, a2 checkoutResp
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a1))
	require.NoError(t, json.Unmarshal(again.Body.Bytes(), &a2))
	assert.True(t, a2.Replay)
	require.Len(t, a2.Orders, 1)
	assert.Equal(t, a1.Orders[0].ID, a2.Orders[0].ID)
	assert.Equal(t, 1, a.stores.Catalog.Stock("cup"), "replay must not reserve again")

	// a failed checkout frees the key
	rec = a.do(t, http.MethodPost, "/cart/checkout", "buyer1", nil, HeaderIdempotencyKey, "k2")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	_, ok, err := a.stores.Cache.Get(ctx, redisx.IdemCheckout("buyer1", "k2"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatusOf(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.EmptyCart:          http.StatusUnprocessableEntity,
		apperr.InsufficientStock:  http.StatusConflict,
		apperr.OrderCommitFailed:  http.StatusInternalServerError,
		apperr.NotFinalized:       http.StatusConflict,
		apperr.Unauthorized:       http.StatusForbidden,
		apperr.AlreadyRated:       http.StatusConflict,
		apperr.InvalidRatingScore: http.StatusBadRequest,
		apperr.NotFound:           http.StatusNotFound,
		apperr.InvalidTransition:  http.StatusConflict,
		apperr.InvalidInput:       http.StatusBadRequest,
		apperr.Internal:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusOf(kind), string(kind))
	}
}
