package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Tables owned by the profile/catalog services are created here only if
// missing, with the columns the order engine reads and writes.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS businesses (
		id           TEXT PRIMARY KEY,
		owner_id     TEXT NOT NULL,
		name         TEXT NOT NULL DEFAULT '',
		phone        TEXT NOT NULL DEFAULT '',
		rating_sum   INTEGER NOT NULL DEFAULT 0,
		rating_count INTEGER NOT NULL DEFAULT 0,
		rating       NUMERIC(3,1) NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_businesses_owner ON businesses(owner_id)`,

	`CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		stock       INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
		discount    INTEGER NOT NULL DEFAULT 0 CHECK (discount BETWEEN 0 AND 100),
		business_id TEXT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_business ON products(business_id)`,

	`CREATE TABLE IF NOT EXISTS carts (
		user_id    TEXT PRIMARY KEY,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id         BIGSERIAL PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES carts(user_id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		quantity   INTEGER NOT NULL CHECK (quantity >= 1),
		UNIQUE (user_id, product_id)
	)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id                    TEXT PRIMARY KEY,
		buyer_id              TEXT NOT NULL,
		business_id           TEXT NULL,
		business_name         TEXT NOT NULL DEFAULT '',
		business_phone        TEXT NOT NULL DEFAULT '',
		total_cents           BIGINT NOT NULL,
		status                TEXT NOT NULL CHECK (status IN ('pending','shipped','delivered','returned')),
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		seller_rating_score   INTEGER NULL CHECK (seller_rating_score BETWEEN 1 AND 5),
		seller_rating_comment TEXT NULL,
		seller_rated_at       TIMESTAMPTZ NULL,
		buyer_rating_score    INTEGER NULL CHECK (buyer_rating_score BETWEEN 1 AND 5),
		buyer_rating_comment  TEXT NULL,
		buyer_rated_at        TIMESTAMPTZ NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_buyer_created ON orders(buyer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_business ON orders(business_id)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id    TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		product_id  TEXT NULL,
		name        TEXT NOT NULL,
		price_cents BIGINT NOT NULL,
		quantity    INTEGER NOT NULL CHECK (quantity >= 1),
		PRIMARY KEY (order_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id)`,

	`CREATE TABLE IF NOT EXISTS buyer_reputation (
		user_id      TEXT PRIMARY KEY,
		rating_sum   INTEGER NOT NULL DEFAULT 0,
		rating_count INTEGER NOT NULL DEFAULT 0,
		rating       NUMERIC(3,1) NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS stock_discrepancies (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		buyer_id    TEXT NOT NULL,
		business_id TEXT NULL,
		order_ids   TEXT[] NOT NULL DEFAULT '{}',
		lines       JSONB NOT NULL,
		reason      TEXT NOT NULL,
		resolved_at TIMESTAMPTZ NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		type       TEXT NOT NULL,
		title      TEXT NOT NULL,
		reference  TEXT NULL,
		metadata   JSONB NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		read_at    TIMESTAMPTZ NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at)`,
}

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
