package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Machine owns order status transitions. Every mutating call checks the
// caller's relationship to the order before touching it.
type Machine struct {
	Store         Store
	Inventory     *inventory.Service
	Products      ProductIndex
	Businesses    Businesses
	Notifier      Notifier
	Discrepancies inventory.DiscrepancyLog
	Log           zerolog.Logger
}

func (m *Machine) load(ctx context.Context, id string) (*Order, error) {
	o, err := m.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "order %s not found", id)
		}
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	return o, nil
}

// sellerScope returns the caller's business and its product ids, if any.
func (m *Machine) sellerScope(ctx context.Context, callerID string) (Business, map[string]struct{}, bool, error) {
	biz, ok, err := m.Businesses.OwnedBy(ctx, callerID)
	if err != nil || !ok {
		return Business{}, nil, false, err
	}
	ids, err := m.Products.ProductIDsByBusiness(ctx, biz.ID)
	if err != nil {
		return Business{}, nil, false, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return biz, set, true, nil
}

func (m *Machine) isSeller(ctx context.Context, o *Order, callerID string) (bool, error) {
	biz, products, ok, err := m.sellerScope(ctx, callerID)
	if err != nil || !ok {
		return false, err
	}
	if o.BusinessID != "" && o.BusinessID == biz.ID {
		return true, nil
	}
	return o.HasProduct(products), nil
}

func (m *Machine) transition(ctx context.Context, o *Order, to Status) error {
	if !CanTransition(o.Status, to) {
		return apperr.New(apperr.InvalidTransition, "order %s cannot go from %s to %s", o.ID, o.Status, to)
	}
	ok, err := m.Store.TransitionStatus(ctx, o.ID, o.Status, to)
	if err != nil {
		return fmt.Errorf("transition order %s to %s: %w", o.ID, to, err)
	}
	if !ok {
		return apperr.New(apperr.InvalidTransition, "order %s is no longer %s", o.ID, o.Status)
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	metrics.OrderTransitions.WithLabelValues(string(to)).Inc()
	return nil
}

func (m *Machine) notify(o *Order, event string, send func() error) {
	if m.Notifier == nil {
		return
	}
	if err := send(); err != nil {
		m.Log.Warn().Err(err).Str("order_id", o.ID).Str("event", event).Msg("notification not enqueued")
	}
}

// Ship moves a pending order to shipped. Seller only.
func (m *Machine) Ship(ctx context.Context, callerID, orderID string) (*Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	seller, err := m.isSeller(ctx, o, callerID)
	if err != nil {
		return nil, fmt.Errorf("resolve seller: %w", err)
	}
	if !seller {
		return nil, apperr.New(apperr.Unauthorized, "only the seller can ship order %s", orderID)
	}
	if err := m.transition(ctx, o, StatusShipped); err != nil {
		return nil, err
	}
	m.notify(o, EventOrderShipped, func() error { return m.Notifier.NotifyShipped(ctx, *o) })
	return o, nil
}

// ConfirmReceipt is the buyer keeping the goods; the sale becomes final.
func (m *Machine) ConfirmReceipt(ctx context.Context, callerID, orderID string) (*Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != callerID {
		return nil, apperr.New(apperr.Unauthorized, "only the buyer can confirm order %s", orderID)
	}
	if err := m.transition(ctx, o, StatusDelivered); err != nil {
		return nil, err
	}
	m.notify(o, EventOrderDelivered, func() error { return m.Notifier.NotifyDelivered(ctx, *o) })
	return o, nil
}

// Return marks the order returned and restores every line's stock. Allowed from
// any state but returned, including after the buyer kept the goods. The status
// compare-and-set runs first, so only one caller ever restores.
func (m *Machine) Return(ctx context.Context, callerID, orderID string) (*Order, error) {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != callerID {
		return nil, apperr.New(apperr.Unauthorized, "only the buyer can return order %s", orderID)
	}
	if err := m.transition(ctx, o, StatusReturned); err != nil {
		return nil, err
	}

	rs := make([]inventory.Reservation, 0, len(o.Lines))
	for _, l := range o.Lines {
		if l.ProductID != "" {
			rs = append(rs, inventory.Reservation{ItemID: l.ProductID, Quantity: l.Quantity})
		}
	}
	failed, err := m.Inventory.ReleaseAll(ctx, rs)
	if err != nil {
		m.Log.Error().Err(err).Str("order_id", o.ID).Interface("lines", failed).Msg("stock restore after return incomplete")
		m.recordRestoreFailure(ctx, o, failed, err)
	}
	return o, nil
}

func (m *Machine) recordRestoreFailure(ctx context.Context, o *Order, failed []inventory.Reservation, cause error) {
	if m.Discrepancies == nil {
		return
	}
	d := inventory.Discrepancy{
		ID:         uuid.NewString(),
		Kind:       inventory.DiscrepancyRestoreFailed,
		BuyerID:    o.BuyerID,
		BusinessID: o.BusinessID,
		OrderIDs:   []string{o.ID},
		Lines:      failed,
		Reason:     cause.Error(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := m.Discrepancies.Record(ctx, d); err != nil {
		m.Log.Error().Err(err).Str("order_id", o.ID).Interface("discrepancy", d).Msg("discrepancy not recorded")
	}
}

// Delete removes a finalized order from history. Buyer or any seller of a line.
func (m *Machine) Delete(ctx context.Context, callerID, orderID string) error {
	o, err := m.load(ctx, orderID)
	if err != nil {
		return err
	}
	allowed := o.BuyerID == callerID
	if !allowed {
		if allowed, err = m.isSeller(ctx, o, callerID); err != nil {
			return fmt.Errorf("resolve seller: %w", err)
		}
	}
	if !allowed {
		return apperr.New(apperr.Unauthorized, "not allowed to delete order %s", orderID)
	}
	if !o.Status.Finalized() {
		return apperr.New(apperr.NotFinalized, "only delivered or returned orders can be deleted")
	}
	if err := m.Store.Delete(ctx, o.ID); err != nil {
		return fmt.Errorf("delete order %s: %w", o.ID, err)
	}
	return nil
}
