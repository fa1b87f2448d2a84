package orders

import "context"

type Store interface {
	// Create is idempotent on Order.ID so a retried create never duplicates.
	Create(ctx context.Context, o *Order) error
	// Get returns apperr.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Order, error)
	// TransitionStatus sets status to `to` only if it is still `from`.
	TransitionStatus(ctx context.Context, id string, from, to Status) (bool, error)
	Delete(ctx context.Context, id string) error
	// Newest first.
	FindByBuyer(ctx context.Context, buyerID string) ([]Order, error)
	FindBySellerOrProducts(ctx context.Context, businessID string, productIDs []string) ([]Order, error)
}

type Businesses interface {
	Get(ctx context.Context, id string) (Business, error)
	OwnedBy(ctx context.Context, userID string) (Business, bool, error)
}

type ProductIndex interface {
	ProductIDsByBusiness(ctx context.Context, businessID string) ([]string, error)
}

// Notifier hands events off for delivery. Implementations must not block on
// delivery; an error means the event could not even be enqueued.
type Notifier interface {
	NotifyNewOrder(ctx context.Context, o Order) error
	NotifyShipped(ctx context.Context, o Order) error
	NotifyDelivered(ctx context.Context, o Order) error
}
