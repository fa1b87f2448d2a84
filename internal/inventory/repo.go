package inventory

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB postgres.DB }

const itemColumns = `p.id, p.name, p.stock, p.price_cents, p.discount,
	COALESCE(p.business_id, ''), COALESCE(b.name, ''), COALESCE(b.phone, '')`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Stock, &it.PriceCents, &it.Discount,
		&it.BusinessID, &it.BusinessName, &it.BusinessPhone)
	return it, err
}

func (r *Repo) Get(ctx context.Context, id string) (Item, error) {
	it, err := scanItem(r.DB.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM products p LEFT JOIN businesses b ON b.id = p.business_id
		WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, apperr.Wrap(apperr.NotFound, err, "product %s not found", id)
	}
	return it, err
}

// ConditionalDecrement is one UPDATE guarded by stock >= qty; no row lock is
// held between reading and writing the stock value.
func (r *Repo) ConditionalDecrement(ctx context.Context, id string, qty int) (Item, bool, error) {
	it, err := scanItem(r.DB.QueryRow(ctx, `
		WITH p AS (
			UPDATE products SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2
			RETURNING id, name, stock, price_cents, discount, business_id
		)
		SELECT `+itemColumns+`
		FROM p LEFT JOIN businesses b ON b.id = p.business_id`, id, qty))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	return it, true, nil
}

func (r *Repo) Increment(ctx context.Context, id string, qty int) (bool, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, id, qty)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) ProductIDsByBusiness(ctx context.Context, businessID string) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT id FROM products WHERE business_id = $1`, businessID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
