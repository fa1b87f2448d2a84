package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message is fully processed and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       Reader
	workers int
	log     zerolog.Logger

	// MaxAttempts bounds how often one message is handed to the handler
	// before it is committed as failed.
	MaxAttempts int
	Backoff     time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log zerolog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return NewConsumerWithReader(r, workers, log)
}

func NewConsumerWithReader(r Reader, workers int, log zerolog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:           r,
		workers:     workers,
		log:         log.With().Str("component", "kafka-consumer").Logger(),
		MaxAttempts: 5,
		Backoff:     200 * time.Millisecond,
	}
}

// Start dispatches messages to a worker pool until ctx ends. A partition
// always lands on the same worker, so its offsets are committed in order. A
// failing message blocks its partition while it is retried; after MaxAttempts
// it is logged and committed. Messages still in flight when ctx ends stay
// uncommitted and are delivered again.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 4)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if !c.handle(ctx, id, h, m) {
					return
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.Warn().Err(err).Int("partition", m.Partition).Int64("offset", m.Offset).Msg("commit offset")
				}
			}
		}(i, queues[i])
	}

	var err error
	for {
		var m kafka.Message
		m, err = c.r.FetchMessage(ctx)
		if err != nil {
			break
		}
		select {
		case queues[m.Partition%c.workers] <- m:
			continue
		case <-ctx.Done():
			err = ctx.Err()
		}
		break
	}
	for _, q := range queues {
		close(q)
	}
	wg.Wait()

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handle retries m until it succeeds or runs out of attempts. It reports
// false only when ctx ended first.
func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) bool {
	attempts := max(1, c.MaxAttempts)
	for i := 1; ; i++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		log := c.log.With().Err(err).Int("worker", worker).Int("partition", m.Partition).
			Int64("offset", m.Offset).Int("attempt", i).Logger()
		if i >= attempts {
			log.Error().Msg("handle message failed, skipping")
			return true
		}
		log.Warn().Msg("handle message")
		select {
		case <-time.After(c.Backoff * time.Duration(i)):
		case <-ctx.Done():
			return false
		}
	}
}
