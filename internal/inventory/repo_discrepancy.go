package inventory

import (
	"context"
	"encoding/json"

	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
)

type DiscrepancyRepo struct{ DB postgres.DB }

func (r *DiscrepancyRepo) Record(ctx context.Context, d Discrepancy) error {
	lines, err := json.Marshal(d.Lines)
	if err != nil {
		return err
	}
	orderIDs := d.OrderIDs
	if orderIDs == nil {
		orderIDs = []string{}
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO stock_discrepancies(id, kind, buyer_id, business_id, order_ids, lines, reason, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`,
		d.ID, d.Kind, d.BuyerID, d.BusinessID, orderIDs, lines, d.Reason, d.CreatedAt)
	return err
}

func (r *DiscrepancyRepo) List(ctx context.Context, limit int) ([]Discrepancy, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, kind, buyer_id, COALESCE(business_id, ''), order_ids, lines, reason, created_at
		FROM stock_discrepancies ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Discrepancy{}
	for rows.Next() {
		var (
			d     Discrepancy
			lines []byte
		)
		if err := rows.Scan(&d.ID, &d.Kind, &d.BuyerID, &d.BusinessID, &d.OrderIDs, &lines, &d.Reason, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(lines, &d.Lines); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
