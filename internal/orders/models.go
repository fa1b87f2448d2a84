package orders

import "time"

// Line is frozen at order creation; later catalog edits do not touch it.
type Line struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
}

func (l Line) SubtotalCents() int64 { return l.PriceCents * int64(l.Quantity) }

type Rating struct {
	Score   int       `json:"score"`
	Comment string    `json:"comment"`
	RatedAt time.Time `json:"rated_at"`
}

type Order struct {
	ID      string `json:"id"`
	BuyerID string `json:"buyer_id"`
	// BusinessID is empty for lines whose product had no business.
	BusinessID    string    `json:"business_id,omitempty"`
	BusinessName  string    `json:"business_name"`
	BusinessPhone string    `json:"business_phone"`
	Lines         []Line    `json:"lines"`
	TotalCents    int64     `json:"total_cents"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// SellerRating is buyer -> seller, BuyerRating is seller -> buyer.
	SellerRating *Rating `json:"seller_rating,omitempty"`
	BuyerRating  *Rating `json:"buyer_rating,omitempty"`
}

func Total(lines []Line) int64 {
	var t int64
	for _, l := range lines {
		t += l.SubtotalCents()
	}
	return t
}

func (o *Order) HasProduct(ids map[string]struct{}) bool {
	for _, l := range o.Lines {
		if _, ok := ids[l.ProductID]; ok {
			return true
		}
	}
	return false
}

type Business struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
}
