package inventory

import "time"

// Item is a catalog entry as seen by the reservation primitive. Business
// fields are empty when the product has no owning business.
type Item struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Stock         int    `json:"stock"`
	PriceCents    int64  `json:"price_cents"`
	Discount      int    `json:"discount"` // percent, 0..100
	BusinessID    string `json:"business_id,omitempty"`
	BusinessName  string `json:"business_name,omitempty"`
	BusinessPhone string `json:"business_phone,omitempty"`
}

// UnitPriceCents is the discounted price, rounded half up to a cent.
func (it Item) UnitPriceCents() int64 {
	return UnitPrice(it.PriceCents, it.Discount)
}

func UnitPrice(priceCents int64, discount int) int64 {
	if discount <= 0 {
		return priceCents
	}
	if discount > 100 {
		discount = 100
	}
	return (priceCents*int64(100-discount) + 50) / 100
}

const (
	ReasonOutOfStock = "OUT_OF_STOCK"
	ReasonNotFound   = "NOT_FOUND"
)

// Reservation is a committed (item, quantity) decrement.
type Reservation struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// Outcome is the result of one reserve call. Item holds the post-decrement
// snapshot when Reserved, and whatever could be read about the item otherwise.
type Outcome struct {
	Item     Item
	Quantity int
	Reserved bool
	Reason   string
}

func (o Outcome) Reservation() Reservation {
	return Reservation{ItemID: o.Item.ID, Quantity: o.Quantity}
}

const (
	DiscrepancyOrderCommitFailed = "ORDER_COMMIT_FAILED"
	DiscrepancyRestoreFailed     = "RESTORE_FAILED"
)

// Discrepancy records stock that was committed (or should have been restored)
// without a matching order state, for out-of-band reconciliation.
type Discrepancy struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	BuyerID    string        `json:"buyer_id"`
	BusinessID string        `json:"business_id,omitempty"`
	OrderIDs   []string      `json:"order_ids,omitempty"`
	Lines      []Reservation `json:"lines"`
	Reason     string        `json:"reason"`
	CreatedAt  time.Time     `json:"created_at"`
}
