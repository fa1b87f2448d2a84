package orders

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB postgres.DB }

const orderColumns = `id, buyer_id, COALESCE(business_id, ''), business_name, business_phone,
	total_cents, status, created_at, updated_at,
	seller_rating_score, seller_rating_comment, seller_rated_at,
	buyer_rating_score, buyer_rating_comment, buyer_rated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o              Order
		status         string
		sScore, bScore *int
		sComm, bComm   *string
		sAt, bAt       *time.Time
	)
	err := row.Scan(&o.ID, &o.BuyerID, &o.BusinessID, &o.BusinessName, &o.BusinessPhone,
		&o.TotalCents, &status, &o.CreatedAt, &o.UpdatedAt,
		&sScore, &sComm, &sAt, &bScore, &bComm, &bAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.SellerRating = toRating(sScore, sComm, sAt)
	o.BuyerRating = toRating(bScore, bComm, bAt)
	return o, nil
}

func toRating(score *int, comment *string, at *time.Time) *Rating {
	if score == nil {
		return nil
	}
	r := &Rating{Score: *score}
	if comment != nil {
		r.Comment = *comment
	}
	if at != nil {
		r.RatedAt = *at
	}
	return r
}

// Create inserts the order and its lines in one transaction. An existing id
// is treated as success so a retried create is harmless.
func (r *Repo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		INSERT INTO orders(id, buyer_id, business_id, business_name, business_phone, total_cents, status, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $8)
		ON CONFLICT (id) DO NOTHING`,
		o.ID, o.BuyerID, o.BusinessID, o.BusinessName, o.BusinessPhone, o.TotalCents, string(o.Status), o.CreatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}

	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(`
			INSERT INTO order_items(order_id, position, product_id, name, price_cents, quantity)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)`,
			o.ID, i, l.ProductID, l.Name, l.PriceCents, l.Quantity)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Wrap(apperr.NotFound, err, "order %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	list := []Order{o}
	if err := r.loadLines(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *Repo) TransitionStatus(ctx context.Context, id string, from, to Status) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "order %s not found", id)
	}
	return nil
}

func (r *Repo) FindByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
}

func (r *Repo) FindBySellerOrProducts(ctx context.Context, businessID string, productIDs []string) ([]Order, error) {
	if productIDs == nil {
		productIDs = []string{}
	}
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE business_id = $1
		   OR id IN (SELECT order_id FROM order_items WHERE product_id = ANY($2))
		ORDER BY created_at DESC`, businessID, productIDs)
}

func (r *Repo) query(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) loadLines(ctx context.Context, list []Order) error {
	if len(list) == 0 {
		return nil
	}
	idx := make(map[string]int, len(list))
	ids := make([]string, 0, len(list))
	for i := range list {
		idx[list[i].ID] = i
		ids = append(ids, list[i].ID)
		list[i].Lines = []Line{}
	}
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, COALESCE(product_id, ''), name, price_cents, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			l       Line
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.Name, &l.PriceCents, &l.Quantity); err != nil {
			return err
		}
		if i, ok := idx[orderID]; ok {
			list[i].Lines = append(list[i].Lines, l)
		}
	}
	return rows.Err()
}

type BusinessRepo struct{ DB postgres.DB }

func (r *BusinessRepo) Get(ctx context.Context, id string) (Business, error) {
	var b Business
	err := r.DB.QueryRow(ctx, `SELECT id, owner_id, name, phone FROM businesses WHERE id = $1`, id).
		Scan(&b.ID, &b.OwnerID, &b.Name, &b.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return Business{}, apperr.Wrap(apperr.NotFound, err, "business %s not found", id)
	}
	return b, err
}

func (r *BusinessRepo) OwnedBy(ctx context.Context, userID string) (Business, bool, error) {
	var b Business
	err := r.DB.QueryRow(ctx, `
		SELECT id, owner_id, name, phone FROM businesses
		WHERE owner_id = $1 ORDER BY created_at LIMIT 1`, userID).
		Scan(&b.ID, &b.OwnerID, &b.Name, &b.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return Business{}, false, nil
	}
	if err != nil {
		return Business{}, false, err
	}
	return b, true, nil
}
