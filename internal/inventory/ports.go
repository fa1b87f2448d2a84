package inventory

import "context"

// Store is the catalog backing store. ConditionalDecrement and Increment must
// each be a single atomic read-modify-write on the stock field.
type Store interface {
	// Get returns apperr.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (Item, error)
	// ConditionalDecrement lowers stock by qty only if stock >= qty. The bool
	// is false when the row did not match (not enough stock or no such item).
	ConditionalDecrement(ctx context.Context, id string, qty int) (Item, bool, error)
	// Increment reports false when the item no longer exists.
	Increment(ctx context.Context, id string, qty int) (bool, error)
	ProductIDsByBusiness(ctx context.Context, businessID string) ([]string, error)
}

type DiscrepancyLog interface {
	Record(ctx context.Context, d Discrepancy) error
	List(ctx context.Context, limit int) ([]Discrepancy, error)
}
