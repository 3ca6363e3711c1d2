// Package order wires a single example topic, order.placed, end to end:
// produce (outbox-backed), the background worker's republish dispatch, and
// a consumer Runtime with inbox dedup — demonstrating how application code
// assembles a topic.Config and its chains from app.App.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shandysiswandi/txmq/internal/app"
	"github.com/shandysiswandi/txmq/internal/consumer"
	"github.com/shandysiswandi/txmq/internal/inbox"
	"github.com/shandysiswandi/txmq/internal/middleware"
	"github.com/shandysiswandi/txmq/internal/outbox"
	"github.com/shandysiswandi/txmq/internal/producer"
	"github.com/shandysiswandi/txmq/internal/scope"
	"github.com/shandysiswandi/txmq/internal/serde"
	"github.com/shandysiswandi/txmq/internal/topic"
)

// Placed is the example message: an order has been placed and needs
// fan-out to downstream consumers (billing, fulfillment, ...).
type Placed struct {
	OrderID    string
	CustomerID string
	TotalCents int64
}

const topicName = "order.placed"

// republisher adapts a direct-publish Dispatcher (built over
// topic.BuildRepublishChain, not topic.BuildProducerChain) into a
// worker.Republisher, so republishing a claimed row never re-inserts it
// into the outbox.
type republisher struct {
	pub *producer.Dispatcher[Placed]
}

func (r *republisher) Republish(ctx context.Context, msg outbox.Message) error {
	ser := serde.NewJSONSerializer[Placed]("order.placed")
	decoded, err := ser.Deserialize(msg.Headers, msg.Payload)
	if err != nil {
		return fmt.Errorf("order: republish: %w", err)
	}
	return r.pub.Produce(ctx, nil, decoded)
}

// Wiring holds the built Dispatcher and Runtime for the order.placed topic.
type Wiring struct {
	Dispatcher *producer.Dispatcher[Placed]
	Runtime    *consumer.Runtime[Placed]

	db    *pgxpool.Pool
	inbox inbox.Store
}

// Start launches the consumer Runtime's broker fetch loop and a draining
// goroutine that processes each delivered order, until the Stream closes
// (Stop was called, or the broker Consume call returned).
//
// Every delivery opens its own database transaction: the authoritative
// inbox.Store.Insert and handle's domain write share one commit, so a
// handler error rolls back the fingerprint mark along with it and the
// message is redelivered — the Inbox stage's Redis-backed cache check
// earlier in the chain only short-circuits the common case before any of
// this runs. The message's offset is stored as part of the same commit
// (deferred through rc), so a crash between insert and commit leaves the
// offset unstored and the broker redelivers.
func (w *Wiring) Start(ctx context.Context, handle func(Placed) error) {
	w.Runtime.Start(ctx)

	go func() {
		for {
			del, ok, err := w.Runtime.Stream().Next(ctx)
			if !ok {
				return
			}
			if err != nil {
				slog.ErrorContext(ctx, "order.placed stream error", "error", err)
				continue
			}
			if err := w.process(ctx, del, handle); err != nil {
				slog.ErrorContext(ctx, "order.placed processing failed", "error", err)
			}
		}
	}()
}

func (w *Wiring) process(ctx context.Context, del consumer.Delivery[Placed], handle func(Placed) error) error {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("order: begin tx: %w", err)
	}
	rc := scope.New(ctx, tx, nil)

	hashID := inbox.Fingerprint(topicName, del.Message.OrderID)
	err = w.inbox.Insert(ctx, rc.Tx(), inbox.Message{HashID: hashID, ConsumedAt: time.Now()})
	if errors.Is(err, inbox.ErrDuplicate) {
		_ = rc.Rollback()
		return del.Ack(ctx)
	}
	if err != nil {
		_ = rc.Rollback()
		return fmt.Errorf("order: inbox insert: %w", err)
	}

	if err := handle(del.Message); err != nil {
		_ = rc.Rollback()
		return fmt.Errorf("order: handle: %w", err)
	}

	rc.Defer(del.Ack)
	return rc.Commit()
}

// Stop waits for the Runtime's consume loop to finish.
func (w *Wiring) Stop() error {
	return w.Runtime.Stop()
}

// Register builds the order.placed topic.Config, its producer Dispatcher
// and consumer Runtime, registers a Republisher into a.Poller()'s
// DispatchTable, and records the Config in a.Registry().
func Register(a *app.App) (*Wiring, error) {
	ser := serde.NewJSONSerializer[Placed]("order.placed")

	cfg, err := topic.NewBuilder[Placed](a.Validator()).
		Name(topicName).
		KeyFrom(func(p Placed) *string { return &p.OrderID }).
		DedupFrom(func(p Placed) string { return p.OrderID }).
		Serializer(ser).
		Producer(topic.ProducerSettings{
			Retry: middleware.RetrySettings{
				Enabled:        true,
				MaxAttempts:    5,
				InitialBackoff: 100 * time.Millisecond,
				MaxBackoff:     5 * time.Second,
			},
			Outbox: middleware.OutboxSettings{
				Strategy: middleware.OutboxStrategyImmediateWithFallback,
			},
		}).
		Consumer(topic.ConsumerSettings{
			Inbox: middleware.InboxSettings{
				Enabled: true,
				TTL:     24 * time.Hour,
			},
			Backpressure: middleware.DefaultBackpressureSettings(),
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("order: build config: %w", err)
	}
	topic.Register(a.Registry(), cfg)

	producerChain := topic.BuildProducerChain[Placed](
		cfg,
		a.Messaging(),
		a.OutboxStore(),
		func(p Placed) string { return p.OrderID },
	)
	dispatcher := producer.New[Placed](topicName, producerChain, a.Instrument(), a.Diagnostics())

	republishChain := topic.BuildRepublishChain[Placed](cfg, a.Messaging())
	republishDispatcher := producer.New[Placed](topicName, republishChain, a.Instrument(), a.Diagnostics())

	rt := consumer.New[Placed](
		topicName,
		a.Messaging(),
		nil,
		a.Instrument(),
		a.Diagnostics(),
		cfg.Consumer.Backpressure,
	)
	consumerChain := topic.BuildConsumerChain[Placed](
		cfg,
		rt,
		a.InboxCache(),
		a.Diagnostics().RecordDuplicateFiltered,
	)
	rt.SetChain(consumerChain)

	a.Poller().RegisterRepublisher(topicName, &republisher{pub: republishDispatcher})

	return &Wiring{
		Dispatcher: dispatcher,
		Runtime:    rt,
		db:         a.DBConn(),
		inbox:      a.InboxStore(),
	}, nil
}
