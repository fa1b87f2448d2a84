package checkout_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ariefcatur/go-marketplace-orders/internal/checkout"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/memstore"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	placed []orders.Order
}

func (r *recorder) NotifyNewOrder(_ context.Context, o orders.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placed = append(r.placed, o)
	return nil
}
func (r *recorder) NotifyShipped(context.Context, orders.Order) error   { return nil }
func (r *recorder) NotifyDelivered(context.Context, orders.Order) error { return nil }

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.placed)
}

type env struct {
	stores *memstore.Stores
	carts  *checkout.Carts
	coord  *checkout.Coordinator
	notes  *recorder
}

func newEnv(t *testing.T, items ...inventory.Item) *env {
	t.Helper()
	m := memstore.New()
	for _, it := range items {
		m.Catalog.Put(it)
	}
	notes := &recorder{}
	return &env{
		stores: m,
		notes:  notes,
		carts:  &checkout.Carts{Store: m.Carts, Catalog: m.Catalog, Log: zerolog.Nop()},
		coord: &checkout.Coordinator{
			Carts:         m.Carts,
			Inventory:     &inventory.Service{Store: m.Catalog, Log: zerolog.Nop()},
			Orders:        m.Orders,
			Notifier:      notes,
			Discrepancies: m.Discrepancies,
			CommitRetries: 3,
			Log:           zerolog.Nop(),
		},
	}
}

// fill writes lines straight to the store, bypassing stock clamping.
func (e *env) fill(t *testing.T, buyer string, lines ...checkout.Line) {
	t.Helper()
	require.NoError(t, e.stores.Carts.Save(context.Background(), checkout.Cart{BuyerID: buyer, Lines: lines}))
}

func (e *env) discrepancies(t *testing.T) []inventory.Discrepancy {
	t.Helper()
	list, err := e.stores.Discrepancies.List(context.Background(), 0)
	require.NoError(t, err)
	return list
}
