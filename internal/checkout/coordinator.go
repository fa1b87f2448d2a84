package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Coordinator turns a cart into one pending order per seller.
//
// Stock is all-or-nothing: the first rejected line releases every line
// reserved before it. Order creation is not rolled back; once stock is
// committed a failed create surfaces as ORDER_COMMIT_FAILED and is written to
// the discrepancy log for reconciliation. Orders created before the failure
// stay, so their lines leave the cart and their sellers are notified.
type Coordinator struct {
	Carts         Store
	Inventory     *inventory.Service
	Orders        orders.Store
	Notifier      orders.Notifier
	Discrepancies inventory.DiscrepancyLog
	CommitRetries int
	RetryBackoff  time.Duration
	Log           zerolog.Logger

	Now   func() time.Time
	NewID func() string
}

type group struct {
	businessID    string
	businessName  string
	businessPhone string
	lines         []orders.Line
	reserved      []inventory.Reservation
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *Coordinator) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}

func (c *Coordinator) Checkout(ctx context.Context, buyerID string) ([]orders.Order, error) {
	cart, err := c.Carts.Get(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return c.CheckoutCart(ctx, cart)
}

// CheckoutCart runs to completion once started; caller cancellation is
// ignored so a reservation is never abandoned without its compensation.
func (c *Coordinator) CheckoutCart(ctx context.Context, cart Cart) ([]orders.Order, error) {
	ctx = context.WithoutCancel(ctx)
	log := c.Log.With().Str("buyer_id", cart.BuyerID).Logger()

	if len(cart.Lines) == 0 {
		metrics.Checkouts.WithLabelValues(string(apperr.EmptyCart)).Inc()
		return nil, apperr.New(apperr.EmptyCart, "cart is empty")
	}

	reserved, err := c.reserveAll(ctx, cart)
	if err != nil {
		metrics.Checkouts.WithLabelValues(string(apperr.KindOf(err))).Inc()
		return nil, err
	}

	created, err := c.commit(ctx, cart.BuyerID, partition(reserved))
	if err != nil {
		metrics.Checkouts.WithLabelValues(string(apperr.KindOf(err))).Inc()
		if len(created) > 0 {
			c.dropOrdered(ctx, cart, created)
			c.notifyNew(ctx, created)
		}
		return nil, err
	}

	if err := c.Carts.Clear(ctx, cart.BuyerID); err != nil {
		log.Error().Err(err).Msg("orders created but cart not cleared")
	}
	c.notifyNew(ctx, created)

	metrics.Checkouts.WithLabelValues("OK").Inc()
	log.Info().Int("orders", len(created)).Int("lines", len(reserved)).Msg("checkout completed")
	return created, nil
}

// reserveAll reserves lines strictly in cart order and stops at the first
// rejection, releasing the prefix reserved so far.
func (c *Coordinator) reserveAll(ctx context.Context, cart Cart) ([]inventory.Outcome, error) {
	reserved := make([]inventory.Outcome, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		out, err := c.Inventory.Reserve(ctx, l.ItemID, l.Quantity)
		if err != nil {
			c.compensate(ctx, cart.BuyerID, reserved)
			return nil, err
		}
		if !out.Reserved {
			c.compensate(ctx, cart.BuyerID, reserved)
			return nil, apperr.Stock(out.Item.Name)
		}
		reserved = append(reserved, out)
	}
	return reserved, nil
}

func (c *Coordinator) compensate(ctx context.Context, buyerID string, reserved []inventory.Outcome) {
	if len(reserved) == 0 {
		return
	}
	rs := make([]inventory.Reservation, 0, len(reserved))
	for _, out := range reserved {
		rs = append(rs, out.Reservation())
	}
	metrics.Compensations.Add(float64(len(rs)))

	failed, err := c.Inventory.ReleaseAll(ctx, rs)
	if err == nil {
		return
	}
	c.Log.Error().Err(err).Str("buyer_id", buyerID).Interface("lines", failed).Msg("compensation incomplete")
	c.record(ctx, inventory.Discrepancy{
		Kind:    inventory.DiscrepancyRestoreFailed,
		BuyerID: buyerID,
		Lines:   failed,
		Reason:  err.Error(),
	})
}

// partition groups reserved lines by seller in first-seen order. Lines with
// no seller share one group. Prices are snapshotted from the reservation.
func partition(reserved []inventory.Outcome) []*group {
	var groups []*group
	byBiz := map[string]*group{}
	for _, out := range reserved {
		it := out.Item
		g, ok := byBiz[it.BusinessID]
		if !ok {
			g = &group{businessID: it.BusinessID, businessName: it.BusinessName, businessPhone: it.BusinessPhone}
			byBiz[it.BusinessID] = g
			groups = append(groups, g)
		}
		g.lines = append(g.lines, orders.Line{
			ProductID:  it.ID,
			Name:       it.Name,
			PriceCents: it.UnitPriceCents(),
			Quantity:   out.Quantity,
		})
		g.reserved = append(g.reserved, out.Reservation())
	}
	return groups
}

func (c *Coordinator) commit(ctx context.Context, buyerID string, groups []*group) ([]orders.Order, error) {
	created := make([]orders.Order, 0, len(groups))
	for i, g := range groups {
		now := c.now()
		o := &orders.Order{
			ID:            c.newID(),
			BuyerID:       buyerID,
			BusinessID:    g.businessID,
			BusinessName:  g.businessName,
			BusinessPhone: g.businessPhone,
			Lines:         g.lines,
			TotalCents:    orders.Total(g.lines),
			Status:        orders.StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := c.createWithRetry(ctx, o); err != nil {
			c.commitFailed(ctx, buyerID, created, groups[i:], err)
			return created, apperr.Wrap(apperr.OrderCommitFailed, err,
				"stock was reserved but the order could not be created; it will be reconciled")
		}
		created = append(created, *o)
	}
	return created, nil
}

// dropOrdered removes the lines that made it into an order from the cart.
func (c *Coordinator) dropOrdered(ctx context.Context, cart Cart, created []orders.Order) {
	ordered := map[string]struct{}{}
	for _, o := range created {
		for _, l := range o.Lines {
			ordered[l.ProductID] = struct{}{}
		}
	}
	rest := make([]Line, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		if _, ok := ordered[l.ItemID]; !ok {
			rest = append(rest, l)
		}
	}
	cart.Lines = rest
	cart.UpdatedAt = c.now()
	if err := c.Carts.Save(ctx, cart); err != nil {
		c.Log.Error().Err(err).Str("buyer_id", cart.BuyerID).Msg("ordered lines not removed from cart")
	}
}

func (c *Coordinator) notifyNew(ctx context.Context, created []orders.Order) {
	if c.Notifier == nil {
		return
	}
	for _, o := range created {
		if err := c.Notifier.NotifyNewOrder(ctx, o); err != nil {
			c.Log.Warn().Err(err).Str("order_id", o.ID).Msg("new order notification not enqueued")
		}
	}
}

func (c *Coordinator) createWithRetry(ctx context.Context, o *orders.Order) error {
	attempts := max(1, c.CommitRetries)
	var err error
	for i := 0; i < attempts; i++ {
		if err = c.Orders.Create(ctx, o); err == nil {
			return nil
		}
		c.Log.Warn().Err(err).Str("order_id", o.ID).Int("attempt", i+1).Msg("create order failed")
		if i < attempts-1 && c.RetryBackoff > 0 {
			time.Sleep(c.RetryBackoff * time.Duration(i+1))
		}
	}
	return err
}

// commitFailed logs and persists every reserved line that has no order.
func (c *Coordinator) commitFailed(ctx context.Context, buyerID string, created []orders.Order, pending []*group, cause error) {
	metrics.OrderCommitFailures.Inc()

	var lines []inventory.Reservation
	for _, g := range pending {
		lines = append(lines, g.reserved...)
	}
	ids := make([]string, 0, len(created))
	for _, o := range created {
		ids = append(ids, o.ID)
	}
	c.Log.Error().Err(cause).
		Str("buyer_id", buyerID).
		Str("business_id", pending[0].businessID).
		Strs("created_orders", ids).
		Interface("lines", lines).
		Msg("order commit failed, stock stays decremented")

	c.record(ctx, inventory.Discrepancy{
		Kind:       inventory.DiscrepancyOrderCommitFailed,
		BuyerID:    buyerID,
		BusinessID: pending[0].businessID,
		OrderIDs:   ids,
		Lines:      lines,
		Reason:     cause.Error(),
	})
}

func (c *Coordinator) record(ctx context.Context, d inventory.Discrepancy) {
	if c.Discrepancies == nil {
		return
	}
	d.ID = uuid.NewString()
	d.CreatedAt = c.now()
	if err := c.Discrepancies.Record(ctx, d); err != nil {
		c.Log.Error().Err(err).Interface("discrepancy", d).Msg("discrepancy not recorded")
	}
}
