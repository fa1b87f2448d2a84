package ratings

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
)

// Repo writes the rating slot and the aggregate in one transaction. The slot
// update is conditional on the slot being empty, which is what makes a second
// rating fail instead of double counting.
type Repo struct{ DB postgres.DB }

func (r *Repo) RecordSellerRating(ctx context.Context, orderID, businessID string, rt orders.Rating) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET seller_rating_score = $2, seller_rating_comment = $3, seller_rated_at = $4, updated_at = now()
		WHERE id = $1 AND status = 'delivered' AND seller_rating_score IS NULL`,
		orderID, rt.Score, rt.Comment, rt.RatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.AlreadyRated, "order %s already rated", orderID)
	}

	if businessID != "" {
		if _, err := tx.Exec(ctx, `
			UPDATE businesses
			SET rating_count = rating_count + 1,
			    rating_sum   = rating_sum + $2,
			    rating       = ROUND((rating_sum + $2)::numeric / (rating_count + 1), 1)
			WHERE id = $1`, businessID, rt.Score); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) RecordBuyerRating(ctx context.Context, orderID, buyerID string, rt orders.Rating) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET buyer_rating_score = $2, buyer_rating_comment = $3, buyer_rated_at = $4, updated_at = now()
		WHERE id = $1 AND status = 'delivered' AND buyer_rating_score IS NULL`,
		orderID, rt.Score, rt.Comment, rt.RatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.AlreadyRated, "buyer of order %s already rated", orderID)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO buyer_reputation(user_id, rating_sum, rating_count, rating)
		VALUES ($1, $2, 1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			rating_count = buyer_reputation.rating_count + 1,
			rating_sum   = buyer_reputation.rating_sum + EXCLUDED.rating_sum,
			rating       = ROUND((buyer_reputation.rating_sum + EXCLUDED.rating_sum)::numeric
			                     / (buyer_reputation.rating_count + 1), 1)`,
		buyerID, rt.Score); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) BusinessReputation(ctx context.Context, businessID string) (Aggregate, error) {
	var a Aggregate
	err := r.DB.QueryRow(ctx, `
		SELECT rating_sum, rating_count, rating::float8 FROM businesses WHERE id = $1`, businessID).
		Scan(&a.Sum, &a.Count, &a.Average)
	if errors.Is(err, pgx.ErrNoRows) {
		return Aggregate{}, apperr.Wrap(apperr.NotFound, err, "business %s not found", businessID)
	}
	return a, err
}

// BuyerReputation is zero for buyers nobody rated yet.
func (r *Repo) BuyerReputation(ctx context.Context, userID string) (Aggregate, error) {
	var a Aggregate
	err := r.DB.QueryRow(ctx, `
		SELECT rating_sum, rating_count, rating::float8 FROM buyer_reputation WHERE user_id = $1`, userID).
		Scan(&a.Sum, &a.Count, &a.Average)
	if errors.Is(err, pgx.ErrNoRows) {
		return Aggregate{}, nil
	}
	return a, err
}
