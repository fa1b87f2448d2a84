package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB postgres.DB }

func (r *Repo) Get(ctx context.Context, buyerID string) (Cart, error) {
	c := Cart{BuyerID: buyerID, Lines: []Line{}}
	err := r.DB.QueryRow(ctx, `SELECT updated_at FROM carts WHERE user_id = $1`, buyerID).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return Cart{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, quantity FROM cart_items
		WHERE user_id = $1 ORDER BY id`, buyerID)
	if err != nil {
		return Cart{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ItemID, &l.Quantity); err != nil {
			return Cart{}, err
		}
		c.Lines = append(c.Lines, l)
	}
	return c, rows.Err()
}

// Save replaces the cart lines. Existing lines keep their row id, so
// insertion order survives quantity updates.
func (r *Repo) Save(ctx context.Context, c Cart) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := upsertCart(ctx, tx, c.BuyerID, c.UpdatedAt); err != nil {
		return err
	}

	keep := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		keep = append(keep, l.ItemID)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM cart_items WHERE user_id = $1 AND NOT (product_id = ANY($2))`, c.BuyerID, keep); err != nil {
		return err
	}
	for _, l := range c.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO cart_items(user_id, product_id, quantity) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
			c.BuyerID, l.ItemID, l.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Clear(ctx context.Context, buyerID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, buyerID); err != nil {
		return err
	}
	if err := upsertCart(ctx, tx, buyerID, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func upsertCart(ctx context.Context, tx pgx.Tx, buyerID string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO carts(user_id, updated_at) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = EXCLUDED.updated_at`, buyerID, at)
	return err
}
