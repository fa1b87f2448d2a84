package checkout

import (
	"context"
	"time"
)

type Line struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Cart belongs to exactly one buyer. Lines keep insertion order, which is
// also the order checkout reserves them in.
type Cart struct {
	BuyerID   string    `json:"buyer_id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Cart) find(itemID string) int {
	for i, l := range c.Lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}

type Store interface {
	// Get returns an empty cart for buyers that never had one.
	Get(ctx context.Context, buyerID string) (Cart, error)
	Save(ctx context.Context, c Cart) error
	// Clear empties the cart without deleting it.
	Clear(ctx context.Context, buyerID string) error
}

// LineView is a cart line joined with its current catalog data.
type LineView struct {
	ItemID         string `json:"item_id"`
	Name           string `json:"name"`
	PriceCents     int64  `json:"price_cents"`
	Discount       int    `json:"discount"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Stock          int    `json:"stock"`
	Quantity       int    `json:"quantity"`
	BusinessID     string `json:"business_id,omitempty"`
	BusinessName   string `json:"business_name,omitempty"`
	BusinessPhone  string `json:"business_phone,omitempty"`
	Missing        bool   `json:"missing,omitempty"`
}

type View struct {
	Items      []LineView `json:"items"`
	TotalCents int64      `json:"total_cents"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
