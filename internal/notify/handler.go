package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// Handler turns order events into inbox rows. It is the kafka.Handler of the
// notifier worker.
type Handler struct {
	Cache      redisx.Cache
	Businesses orders.Businesses
	Inbox      Inbox
	Service    string
	Log        zerolog.Logger
}

func (h *Handler) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message; committing it is the only way forward
		h.Log.Error().Err(err).Int64("offset", m.Offset).Msg("undecodable event skipped")
		return nil
	}
	switch env.EventType {
	case orders.EventOrderPlaced, orders.EventOrderShipped, orders.EventOrderDelivered:
	default:
		return nil
	}

	dkey := redisx.Dedup(h.Service, env.EventID)
	fresh, err := h.Cache.Claim(ctx, dkey, "1", redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !fresh {
		return nil
	}

	if err := h.deliver(ctx, env); err != nil {
		// release the claim so the redelivery is not swallowed
		if derr := h.Cache.Del(ctx, dkey); derr != nil {
			h.Log.Warn().Err(derr).Str("event_id", env.EventID).Msg("dedup key not released")
		}
		return err
	}
	metrics.NotificationsDelivered.WithLabelValues(env.EventType).Inc()
	return nil
}

func (h *Handler) deliver(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderEventPayload](env.Payload)
	if err != nil {
		h.Log.Error().Err(err).Str("event_id", env.EventID).Msg("undecodable payload skipped")
		return nil
	}

	n := Notification{
		ID:        env.EventID,
		Reference: p.OrderID,
		CreatedAt: env.OccurredAt,
		Metadata: map[string]any{
			"order_id":    p.OrderID,
			"total_cents": p.TotalCents,
			"status":      p.Status,
		},
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	switch env.EventType {
	case orders.EventOrderShipped:
		n.UserID = p.BuyerID
		n.Type = TypeOrderShipped
		n.Title = fmt.Sprintf("Your order from %s has shipped", orDefault(p.BusinessName, "the seller"))
	case orders.EventOrderPlaced, orders.EventOrderDelivered:
		owner, ok, err := h.sellerOwner(ctx, p.BusinessID)
		if err != nil {
			return err
		}
		if !ok {
			h.Log.Warn().Str("order_id", p.OrderID).Str("event", env.EventType).Msg("order has no seller to notify")
			return nil
		}
		n.UserID = owner
		if env.EventType == orders.EventOrderPlaced {
			n.Type = TypeNewOrder
			n.Title = fmt.Sprintf("New order with %d item(s)", len(p.Items))
		} else {
			n.Type = TypeOrderReceived
			n.Title = "The buyer confirmed receipt of an order"
		}
	}

	if err := h.Inbox.Deliver(ctx, n); err != nil {
		return fmt.Errorf("deliver notification %s: %w", n.ID, err)
	}
	h.Log.Debug().Str("event_id", env.EventID).Str("user_id", n.UserID).Str("type", n.Type).Msg("notification delivered")
	return nil
}

func (h *Handler) sellerOwner(ctx context.Context, businessID string) (string, bool, error) {
	if businessID == "" {
		return "", false, nil
	}
	b, err := h.Businesses.Get(ctx, businessID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load business %s: %w", businessID, err)
	}
	return b.OwnerID, b.OwnerID != "", nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
