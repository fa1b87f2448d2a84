package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/rs/zerolog"
)

// Service is the reservation primitive every stock mutation goes through.
type Service struct {
	Store Store
	Log   zerolog.Logger
}

// Reserve decrements stock iff enough is available. A rejection is reported
// through the Outcome, not as an error; errors are storage failures only.
func (s *Service) Reserve(ctx context.Context, itemID string, qty int) (Outcome, error) {
	if qty < 1 {
		return Outcome{}, apperr.New(apperr.InvalidInput, "quantity for %s must be at least 1", itemID)
	}
	item, ok, err := s.Store.ConditionalDecrement(ctx, itemID, qty)
	if err != nil {
		return Outcome{}, fmt.Errorf("reserve %s: %w", itemID, err)
	}
	if ok {
		return Outcome{Item: item, Quantity: qty, Reserved: true}, nil
	}

	metrics.ReservationsRejected.Inc()

	// read only to describe the rejection
	cur, err := s.Store.Get(ctx, itemID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return Outcome{Item: Item{ID: itemID, Name: itemID}, Quantity: qty, Reason: ReasonNotFound}, nil
	case err != nil:
		s.Log.Warn().Err(err).Str("item_id", itemID).Msg("lookup after rejected reservation failed")
		cur = Item{ID: itemID, Name: itemID}
	}
	return Outcome{Item: cur, Quantity: qty, Reason: ReasonOutOfStock}, nil
}

// Release gives qty back to the item. A vanished item is a warning, not an error.
func (s *Service) Release(ctx context.Context, itemID string, qty int) error {
	if qty < 1 {
		return nil
	}
	found, err := s.Store.Increment(ctx, itemID, qty)
	if err != nil {
		return fmt.Errorf("release %s: %w", itemID, err)
	}
	if !found {
		s.Log.Warn().Str("item_id", itemID).Int("qty", qty).Msg("release skipped, item no longer exists")
	}
	return nil
}

// ReleaseAll releases every reservation, continuing past failures. It returns
// the reservations that could not be restored.
func (s *Service) ReleaseAll(ctx context.Context, rs []Reservation) ([]Reservation, error) {
	var (
		failed []Reservation
		errs   []error
	)
	for _, r := range rs {
		if err := s.Release(ctx, r.ItemID, r.Quantity); err != nil {
			failed = append(failed, r)
			errs = append(errs, err)
		}
	}
	return failed, errors.Join(errs...)
}
