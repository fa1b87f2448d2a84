package ratings

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/rs/zerolog"
)

const MaxCommentLength = 1000

type Store interface {
	// RecordSellerRating fills the order's buyer->seller slot and folds the
	// score into the business aggregate atomically. It returns
	// apperr.ErrAlreadyRated when the slot is already filled. An empty
	// businessID records the rating without touching any aggregate.
	RecordSellerRating(ctx context.Context, orderID, businessID string, r orders.Rating) error
	// RecordBuyerRating is the seller->buyer mirror of RecordSellerRating.
	RecordBuyerRating(ctx context.Context, orderID, buyerID string, r orders.Rating) error
	BusinessReputation(ctx context.Context, businessID string) (Aggregate, error)
	BuyerReputation(ctx context.Context, userID string) (Aggregate, error)
}

// Ledger enforces one rating per direction per delivered order.
type Ledger struct {
	Orders     orders.Store
	Store      Store
	Businesses orders.Businesses
	Log        zerolog.Logger
	Now        func() time.Time
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func validate(score int, comment string) error {
	if score < 1 || score > 5 {
		return apperr.New(apperr.InvalidRatingScore, "rating must be between 1 and 5, got %d", score)
	}
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		return apperr.New(apperr.InvalidInput, "comment too long (max %d characters)", MaxCommentLength)
	}
	return nil
}

func (l *Ledger) load(ctx context.Context, id string) (*orders.Order, error) {
	o, err := l.Orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "order %s not found", id)
		}
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	if o.Status != orders.StatusDelivered {
		return nil, apperr.New(apperr.NotFinalized, "only delivered orders can be rated")
	}
	return o, nil
}

// RateSeller records the buyer's rating of the order's seller.
func (l *Ledger) RateSeller(ctx context.Context, orderID, raterID string, score int, comment string) (orders.Rating, error) {
	if err := validate(score, comment); err != nil {
		return orders.Rating{}, err
	}
	o, err := l.load(ctx, orderID)
	if err != nil {
		return orders.Rating{}, err
	}
	if o.BuyerID != raterID {
		return orders.Rating{}, apperr.New(apperr.Unauthorized, "only the buyer can rate the seller of order %s", orderID)
	}
	if o.SellerRating != nil {
		return orders.Rating{}, apperr.New(apperr.AlreadyRated, "order %s already rated", orderID)
	}

	r := orders.Rating{Score: score, Comment: comment, RatedAt: l.now()}
	if err := l.Store.RecordSellerRating(ctx, o.ID, o.BusinessID, r); err != nil {
		return orders.Rating{}, l.recordErr(err, o.ID)
	}
	metrics.Ratings.WithLabelValues("seller").Inc()
	l.Log.Info().Str("order_id", o.ID).Str("business_id", o.BusinessID).Int("score", score).Msg("seller rated")
	return r, nil
}

// RateBuyer records the seller's rating of the order's buyer. The caller must
// own the business the order was sold by.
func (l *Ledger) RateBuyer(ctx context.Context, orderID, raterID string, score int, comment string) (orders.Rating, error) {
	if err := validate(score, comment); err != nil {
		return orders.Rating{}, err
	}
	o, err := l.load(ctx, orderID)
	if err != nil {
		return orders.Rating{}, err
	}
	biz, ok, err := l.Businesses.OwnedBy(ctx, raterID)
	if err != nil {
		return orders.Rating{}, fmt.Errorf("resolve business: %w", err)
	}
	if !ok {
		return orders.Rating{}, apperr.New(apperr.Unauthorized, "only sellers can rate buyers")
	}
	if o.BusinessID == "" || o.BusinessID != biz.ID {
		return orders.Rating{}, apperr.New(apperr.Unauthorized, "order %s was not sold by your business", orderID)
	}
	if o.BuyerRating != nil {
		return orders.Rating{}, apperr.New(apperr.AlreadyRated, "buyer of order %s already rated", orderID)
	}

	r := orders.Rating{Score: score, Comment: comment, RatedAt: l.now()}
	if err := l.Store.RecordBuyerRating(ctx, o.ID, o.BuyerID, r); err != nil {
		return orders.Rating{}, l.recordErr(err, o.ID)
	}
	metrics.Ratings.WithLabelValues("buyer").Inc()
	l.Log.Info().Str("order_id", o.ID).Str("buyer_id", o.BuyerID).Int("score", score).Msg("buyer rated")
	return r, nil
}

func (l *Ledger) recordErr(err error, orderID string) error {
	if errors.Is(err, apperr.ErrAlreadyRated) {
		return err
	}
	return fmt.Errorf("record rating for order %s: %w", orderID, err)
}

// BusinessReputation fails with NOT_FOUND for unknown businesses.
func (l *Ledger) BusinessReputation(ctx context.Context, businessID string) (Aggregate, error) {
	if l.Businesses != nil {
		if _, err := l.Businesses.Get(ctx, businessID); err != nil {
			return Aggregate{}, err
		}
	}
	return l.Store.BusinessReputation(ctx, businessID)
}

func (l *Ledger) BuyerReputation(ctx context.Context, userID string) (Aggregate, error) {
	return l.Store.BuyerReputation(ctx, userID)
}
