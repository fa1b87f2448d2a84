package redisx

import (
	"fmt"
	"time"
)

const (
	// idem:checkout:{buyer_id}:{idempotency_key} -> pending | JSON order ids
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

func IdemCheckout(buyerID, key string) string { return fmt.Sprintf(KeyIdemCheckout, buyerID, key) }
func OrderStatus(orderID string) string       { return fmt.Sprintf(KeyOrderStatus, orderID) }
func Dedup(service, eventID string) string    { return fmt.Sprintf(KeyDedup, service, eventID) }
