package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderShipped   = "OrderShipped"
	EventOrderDelivered = "OrderDelivered"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderEventPayload struct {
	OrderID      string    `json:"order_id"`
	BuyerID      string    `json:"buyer_id"`
	BusinessID   string    `json:"business_id,omitempty"`
	BusinessName string    `json:"business_name,omitempty"`
	Status       Status    `json:"status"`
	TotalCents   int64     `json:"total_cents"`
	Items        []ItemQty `json:"items"`
}

func NewOrderEventPayload(o Order) OrderEventPayload {
	items := make([]ItemQty, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, ItemQty{ProductID: l.ProductID, Qty: l.Quantity})
	}
	return OrderEventPayload{
		OrderID:      o.ID,
		BuyerID:      o.BuyerID,
		BusinessID:   o.BusinessID,
		BusinessName: o.BusinessName,
		Status:       o.Status,
		TotalCents:   o.TotalCents,
		Items:        items,
	}
}
