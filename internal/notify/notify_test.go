package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/memstore"
	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	msgs []kafkago.Message
	err  error
}

func (c *capture) Publish(key, value []byte, headers ...kafkago.Header) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
	return nil
}

type inbox struct {
	mu    sync.Mutex
	rows  []notify.Notification
	fails int
}

func (i *inbox) Deliver(_ context.Context, n notify.Notification) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.fails > 0 {
		i.fails--
		return errors.New("db down")
	}
	i.rows = append(i.rows, n)
	return nil
}

var sample = orders.Order{
	ID:           "o1",
	BuyerID:      "buyer1",
	BusinessID:   "biz1",
	BusinessName: "Yerba Co",
	Status:       orders.StatusPending,
	TotalCents:   900,
	Lines:        []orders.Line{{ProductID: "p1", Name: "Cup", PriceCents: 900, Quantity: 1}},
}

func TestPublisherWritesEnvelope(t *testing.T) {
	c := &capture{}
	p := &notify.Publisher{Producer: c, Service: "api", Log: zerolog.Nop()}

	require.NoError(t, p.NotifyNewOrder(context.Background(), sample))
	require.Len(t, c.msgs, 1)
	m := c.msgs[0]

	assert.Equal(t, "o1", string(m.Key))
	assert.Equal(t, orders.EventOrderPlaced, kafkax.Header(m, notify.HeaderEventType))

	var env orders.Envelope
	require.NoError(t, json.Unmarshal(m.Value, &env))
	assert.Equal(t, orders.EventOrderPlaced, env.EventType)
	assert.Equal(t, "o1", env.CorrelationID)
	assert.Equal(t, "api", env.Producer)
	assert.NotEmpty(t, env.EventID)

	payload, err := kafkax.UnwrapPayload[orders.OrderEventPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "buyer1", payload.BuyerID)
	assert.Equal(t, []orders.ItemQty{{ProductID: "p1", Qty: 1}}, payload.Items)
}

func TestPublisherReportsFullQueue(t *testing.T) {
	p := &notify.Publisher{Producer: &capture{err: kafkax.ErrQueueFull}, Log: zerolog.Nop()}
	assert.ErrorIs(t, p.NotifyShipped(context.Background(), sample), kafkax.ErrQueueFull)
}

func newHandler() (*notify.Handler, *inbox) {
	ib := &inbox{}
	return &notify.Handler{
		Cache:      memstore.NewCache(),
		Businesses: memstore.NewBusinesses(orders.Business{ID: "biz1", OwnerID: "seller1"}),
		Inbox:      ib,
		Service:    "notifier",
		Log:        zerolog.Nop(),
	}, ib
}

func publish(t *testing.T, event func(*notify.Publisher) error) kafkago.Message {
	t.Helper()
	c := &capture{}
	require.NoError(t, event(&notify.Publisher{Producer: c, Service: "api", Log: zerolog.Nop()}))
	require.Len(t, c.msgs, 1)
	return c.msgs[0]
}

func TestHandlerRoutesRecipients(t *testing.T) {
	ctx := context.Background()
	h, ib := newHandler()

	placed := publish(t, func(p *notify.Publisher) error { return p.NotifyNewOrder(ctx, sample) })
	shipped := publish(t, func(p *notify.Publisher) error { return p.NotifyShipped(ctx, sample) })
	delivered := publish(t, func(p *notify.Publisher) error { return p.NotifyDelivered(ctx, sample) })

	for _, m := range []kafkago.Message{placed, shipped, delivered} {
		require.NoError(t, h.HandleOrderEvent(ctx, m))
	}

	require.Len(t, ib.rows, 3)
	assert.Equal(t, "seller1", ib.rows[0].UserID)
	assert.Equal(t, notify.TypeNewOrder, ib.rows[0].Type)
	assert.Equal(t, "buyer1", ib.rows[1].UserID)
	assert.Equal(t, notify.TypeOrderShipped, ib.rows[1].Type)
	assert.Equal(t, "seller1", ib.rows[2].UserID)
	assert.Equal(t, notify.TypeOrderReceived, ib.rows[2].Type)
	assert.Equal(t, "o1", ib.rows[0].Reference)
}

func TestHandlerDeduplicatesRedelivery(t *testing.T) {
	ctx := context.Background()
	h, ib := newHandler()
	m := publish(t, func(p *notify.Publisher) error { return p.NotifyNewOrder(ctx, sample) })

	require.NoError(t, h.HandleOrderEvent(ctx, m))
	require.NoError(t, h.HandleOrderEvent(ctx, m))
	assert.Len(t, ib.rows, 1)
}

func TestHandlerReleasesClaimOnFailure(t *testing.T) {
	ctx := context.Background()
	h, ib := newHandler()
	ib.fails = 1
	m := publish(t, func(p *notify.Publisher) error { return p.NotifyShipped(ctx, sample) })

	require.Error(t, h.HandleOrderEvent(ctx, m))
	require.NoError(t, h.HandleOrderEvent(ctx, m))
	assert.Len(t, ib.rows, 1)
}

func TestHandlerSkipsUnknownAndGarbage(t *testing.T) {
	ctx := context.Background()
	h, ib := newHandler()

	require.NoError(t, h.HandleOrderEvent(ctx, kafkago.Message{Value: []byte("{not json")}))

	env := orders.Envelope{EventID: "e1", EventType: "SomethingElse", OccurredAt: time.Now()}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, h.HandleOrderEvent(ctx, kafkago.Message{Value: b}))

	orphan := sample
	orphan.BusinessID = ""
	m := publish(t, func(p *notify.Publisher) error { return p.NotifyNewOrder(ctx, orphan) })
	require.NoError(t, h.HandleOrderEvent(ctx, m))

	assert.Empty(t, ib.rows)
}
