// Package notify moves order events from the API to the in-app inbox over
// kafka. Publishing is fire-and-forget; the consumer side dedups by event id.
package notify

import (
	"context"
	"errors"
	"strconv"
	"time"

	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/metrics"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
	eventVersion       = 1
)

// Producer is satisfied by *kafka.Producer.
type Producer interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

// Publisher implements orders.Notifier.
type Publisher struct {
	Producer Producer
	Service  string
	Log      zerolog.Logger
}

func (p *Publisher) NotifyNewOrder(ctx context.Context, o orders.Order) error {
	return p.publish(ctx, orders.EventOrderPlaced, o)
}

func (p *Publisher) NotifyShipped(ctx context.Context, o orders.Order) error {
	return p.publish(ctx, orders.EventOrderShipped, o)
}

func (p *Publisher) NotifyDelivered(ctx context.Context, o orders.Order) error {
	return p.publish(ctx, orders.EventOrderDelivered, o)
}

func (p *Publisher) publish(_ context.Context, eventType string, o orders.Order) error {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(orders.NewOrderEventPayload(o)),
	}
	err := p.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: HeaderEventType, Value: []byte(eventType)},
		kafkago.Header{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(eventVersion))},
	)
	if errors.Is(err, kafkax.ErrQueueFull) {
		metrics.NotificationsDropped.Inc()
		p.Log.Warn().Str("order_id", o.ID).Str("event", eventType).Msg("notification queue full, event dropped")
	}
	return err
}
