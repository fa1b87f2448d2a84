package checkout_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/checkout"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/memstore"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cup    = inventory.Item{ID: "cup", Name: "Mate cup", Stock: 5, PriceCents: 1000, Discount: 10, BusinessID: "biz1", BusinessName: "Yerba Co", BusinessPhone: "111"}
	straw  = inventory.Item{ID: "straw", Name: "Bombilla", Stock: 4, PriceCents: 333, Discount: 15, BusinessID: "biz1", BusinessName: "Yerba Co", BusinessPhone: "111"}
	kettle = inventory.Item{ID: "kettle", Name: "Kettle", Stock: 1, PriceCents: 5500, BusinessID: "biz2", BusinessName: "Steel Ltd", BusinessPhone: "222"}
)

func TestCheckoutEmptyCart(t *testing.T) {
	e := newEnv(t, cup)

	created, err := e.coord.Checkout(context.Background(), "buyer")
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
	assert.Nil(t, created)
	assert.Equal(t, 5, e.stores.Catalog.Stock("cup"))
}

func TestCheckoutSplitsBySellerWithDiscountedSnapshot(t *testing.T) {
	e := newEnv(t, cup, straw, kettle)
	e.fill(t, "buyer",
		checkout.Line{ItemID: "cup", Quantity: 2},
		checkout.Line{ItemID: "kettle", Quantity: 1},
		checkout.Line{ItemID: "straw", Quantity: 1},
	)

	created, err := e.coord.Checkout(context.Background(), "buyer")
	require.NoError(t, err)
	require.Len(t, created, 2)

	first, second := created[0], created[1]
	assert.Equal(t, "biz1", first.BusinessID)
	assert.Equal(t, "Yerba Co", first.BusinessName)
	assert.Equal(t, orders.StatusPending, first.Status)
	require.Len(t, first.Lines, 2)
	assert.Equal(t, orders.Line{ProductID: "cup", Name: "Mate cup", PriceCents: 900, Quantity: 2}, first.Lines[0])
	assert.Equal(t, orders.Line{ProductID: "straw", Name: "Bombilla", PriceCents: 283, Quantity: 1}, first.Lines[1])
	assert.Equal(t, int64(2083), first.TotalCents)

	assert.Equal(t, "biz2", second.BusinessID)
	assert.Equal(t, int64(5500), second.TotalCents)

	assert.Equal(t, 3, e.stores.Catalog.Stock("cup"))
	assert.Equal(t, 3, e.stores.Catalog.Stock("straw"))
	assert.Equal(t, 0, e.stores.Catalog.Stock("kettle"))
	assert.Equal(t, 2, e.stores.Orders.Len())
	assert.Equal(t, 2, e.notes.count())

	cart, err := e.stores.Carts.Get(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)

	// later catalog edits do not reach the stored order
	e.stores.Catalog.Put(inventory.Item{ID: "cup", Name: "Renamed", Stock: 3, PriceCents: 9999, BusinessID: "biz1"})
	stored, err := e.stores.Orders.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mate cup", stored.Lines[0].Name)
	assert.Equal(t, int64(900), stored.Lines[0].PriceCents)
}

func TestCheckoutRollsBackEveryReservedLine(t *testing.T) {
	e := newEnv(t, cup, straw, kettle)
	e.fill(t, "buyer",
		checkout.Line{ItemID: "cup", Quantity: 2},
		checkout.Line{ItemID: "straw", Quantity: 4},
		checkout.Line{ItemID: "kettle", Quantity: 3},
	)

	created, err := e.coord.Checkout(context.Background(), "buyer")
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Nil(t, created)

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Kettle", ae.Item)

	assert.Equal(t, 5, e.stores.Catalog.Stock("cup"))
	assert.Equal(t, 4, e.stores.Catalog.Stock("straw"))
	assert.Equal(t, 1, e.stores.Catalog.Stock("kettle"))
	assert.Equal(t, 0, e.stores.Orders.Len())
	assert.Zero(t, e.notes.count())

	cart, err := e.stores.Carts.Get(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 3, "cart is untouched on rejection")
}

func TestCheckoutUnknownItemNamesTheID(t *testing.T) {
	e := newEnv(t, cup)
	e.fill(t, "buyer", checkout.Line{ItemID: "cup", Quantity: 1}, checkout.Line{ItemID: "ghost", Quantity: 1})

	_, err := e.coord.Checkout(context.Background(), "buyer")
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.InsufficientStock, ae.Kind)
	assert.Equal(t, "ghost", ae.Item)
	assert.Equal(t, 5, e.stores.Catalog.Stock("cup"))
}

func TestConcurrentCheckoutsCannotOversell(t *testing.T) {
	e := newEnv(t, inventory.Item{ID: "last", Name: "Last one", Stock: 3, PriceCents: 100, BusinessID: "biz1"})
	e.fill(t, "alice", checkout.Line{ItemID: "last", Quantity: 2})
	e.fill(t, "bob", checkout.Line{ItemID: "last", Quantity: 2})

	var (
		wg       sync.WaitGroup
		ok, lost atomic.Int32
	)
	for _, buyer := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(b string) {
			defer wg.Done()
			_, err := e.coord.Checkout(context.Background(), b)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, apperr.ErrInsufficientStock):
				lost.Add(1)
			}
		}(buyer)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(1), lost.Load())
	assert.Equal(t, 1, e.stores.Catalog.Stock("last"))
	assert.Equal(t, 1, e.stores.Orders.Len())
}

func TestCheckoutIgnoresCallerCancellation(t *testing.T) {
	e := newEnv(t, cup)
	e.fill(t, "buyer", checkout.Line{ItemID: "cup", Quantity: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	created, err := e.coord.Checkout(ctx, "buyer")
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

// flakyOrders fails Create for one seller, or for the first n attempts.
type flakyOrders struct {
	*memstore.Orders
	failBusiness string
	failFirst    int32
	attempts     atomic.Int32
}

func (f *flakyOrders) Create(ctx context.Context, o *orders.Order) error {
	n := f.attempts.Add(1)
	if f.failBusiness != "" && o.BusinessID == f.failBusiness {
		return errors.New("connection reset")
	}
	if n <= f.failFirst {
		return errors.New("connection reset")
	}
	return f.Orders.Create(ctx, o)
}

func TestOrderCommitFailureKeepsStockAndRecordsDiscrepancy(t *testing.T) {
	e := newEnv(t, cup, kettle)
	flaky := &flakyOrders{Orders: e.stores.Orders, failBusiness: "biz2"}
	e.coord.Orders = flaky
	e.fill(t, "buyer", checkout.Line{ItemID: "cup", Quantity: 2}, checkout.Line{ItemID: "kettle", Quantity: 1})

	created, err := e.coord.Checkout(context.Background(), "buyer")
	require.ErrorIs(t, err, apperr.ErrOrderCommitFailed)
	assert.Nil(t, created)

	// one attempt for biz1, three for biz2
	assert.Equal(t, int32(4), flaky.attempts.Load())
	assert.Equal(t, 1, e.stores.Orders.Len())
	assert.Equal(t, 3, e.stores.Catalog.Stock("cup"), "stock stays committed")
	assert.Equal(t, 0, e.stores.Catalog.Stock("kettle"))
	require.Equal(t, 1, e.notes.count(), "the order that exists is announced")
	assert.Equal(t, "biz1", e.notes.placed[0].BusinessID)

	cart, err := e.stores.Carts.Get(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Equal(t, []checkout.Line{{ItemID: "kettle", Quantity: 1}}, cart.Lines)

	ds := e.discrepancies(t)
	require.Len(t, ds, 1)
	d := ds[0]
	assert.Equal(t, inventory.DiscrepancyOrderCommitFailed, d.Kind)
	assert.Equal(t, "buyer", d.BuyerID)
	assert.Equal(t, "biz2", d.BusinessID)
	assert.Len(t, d.OrderIDs, 1)
	assert.Equal(t, []inventory.Reservation{{ItemID: "kettle", Quantity: 1}}, d.Lines)
	assert.Contains(t, d.Reason, "connection reset")
}

func TestRetryAfterPartialCommitOrdersOnlyTheRest(t *testing.T) {
	ctx := context.Background()
	big := kettle
	big.Stock = 5
	e := newEnv(t, cup, big)
	flaky := &flakyOrders{Orders: e.stores.Orders, failBusiness: "biz2"}
	e.coord.Orders = flaky
	e.fill(t, "buyer", checkout.Line{ItemID: "cup", Quantity: 2}, checkout.Line{ItemID: "kettle", Quantity: 1})

	_, err := e.coord.Checkout(ctx, "buyer")
	require.ErrorIs(t, err, apperr.ErrOrderCommitFailed)

	flaky.failBusiness = ""
	created, err := e.coord.Checkout(ctx, "buyer")
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "biz2", created[0].BusinessID)

	assert.Equal(t, 2, e.stores.Orders.Len())
	assert.Equal(t, 3, e.stores.Catalog.Stock("cup"), "cup is sold once")
	assert.Equal(t, 3, e.stores.Catalog.Stock("kettle"), "one kettle lost to the failed commit, one sold")
	assert.Equal(t, 2, e.notes.count())

	mine, err := e.stores.Orders.FindByBuyer(ctx, "buyer")
	require.NoError(t, err)
	cups := 0
	for _, o := range mine {
		for _, l := range o.Lines {
			if l.ProductID == "cup" {
				cups += l.Quantity
			}
		}
	}
	assert.Equal(t, 2, cups)

	cart, err := e.stores.Carts.Get(ctx, "buyer")
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
}

func TestOrderCreateIsRetried(t *testing.T) {
	e := newEnv(t, cup)
	flaky := &flakyOrders{Orders: e.stores.Orders, failFirst: 2}
	e.coord.Orders = flaky
	e.fill(t, "buyer", checkout.Line{ItemID: "cup", Quantity: 1})

	created, err := e.coord.Checkout(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Equal(t, int32(3), flaky.attempts.Load())
	assert.Empty(t, e.discrepancies(t))
}
