package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/shandysiswandi/txmq/internal/outbox"
	"github.com/shandysiswandi/txmq/internal/pkg/instrument"
)

func topicAttr(topic string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("messaging.destination", topic))
}

func typeAttr(typeName string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("messaging.message_type", typeName))
}

// Diagnostics holds one package's counters, histogram, and gauge. It is
// always constructed explicitly and passed to the components that report
// through it — never resolved from a package-level global.
type Diagnostics struct {
	messagesProduced        metric.Int64Counter
	messagesConsumed        metric.Int64Counter
	inboxDuplicatesFiltered metric.Int64Counter
	outboxPublishDuration   metric.Float64Histogram
	outboxPending           metric.Int64ObservableGauge
}

// New builds a Diagnostics reporting through ins's Meter. pendingFn backs
// the outbox.pending gauge; pass nil to skip registering it (e.g. in tests,
// or processes that never run the outbox worker).
func New(ins instrument.Instrumentation, pendingFn func(ctx context.Context) (int64, error)) (*Diagnostics, error) {
	meter := ins.Meter("txmq")

	produced, err := meter.Int64Counter("messages.produced",
		metric.WithDescription("messages successfully handed to a broker or outbox"))
	if err != nil {
		return nil, err
	}

	consumed, err := meter.Int64Counter("messages.consumed",
		metric.WithDescription("messages delivered through a consumer chain"))
	if err != nil {
		return nil, err
	}

	duplicates, err := meter.Int64Counter("inbox.duplicates_filtered",
		metric.WithDescription("consumed messages short-circuited by the inbox stage"))
	if err != nil {
		return nil, err
	}

	publishDuration, err := meter.Float64Histogram("outbox.publish_duration",
		metric.WithDescription("time between an outbox row's insert and its successful republish"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	d := &Diagnostics{
		messagesProduced:        produced,
		messagesConsumed:        consumed,
		inboxDuplicatesFiltered: duplicates,
		outboxPublishDuration:   publishDuration,
	}

	if pendingFn != nil {
		gauge, err := meter.Int64ObservableGauge("outbox.pending",
			metric.WithDescription("pending rows in the outbox table"),
			metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
				n, err := pendingFn(ctx)
				if err != nil {
					return err
				}
				obs.Observe(n)
				return nil
			}),
		)
		if err != nil {
			return nil, err
		}
		d.outboxPending = gauge
	}

	return d, nil
}

// RecordProduced increments the messages.produced counter.
func (d *Diagnostics) RecordProduced(ctx context.Context, topic string) {
	d.messagesProduced.Add(ctx, 1, topicAttr(topic))
}

// RecordConsumed increments the messages.consumed counter.
func (d *Diagnostics) RecordConsumed(ctx context.Context, source string) {
	d.messagesConsumed.Add(ctx, 1, topicAttr(source))
}

// RecordDuplicateFiltered increments the inbox.duplicates_filtered counter.
func (d *Diagnostics) RecordDuplicateFiltered(ctx context.Context, typeName string) {
	d.inboxDuplicatesFiltered.Add(ctx, 1, typeAttr(typeName))
}

// RecordPublishDuration records how long an outbox row waited between
// insert and successful republish.
func (d *Diagnostics) RecordPublishDuration(ctx context.Context, msg outbox.Message) {
	elapsed := time.Since(msg.CreatedAt).Seconds()
	d.outboxPublishDuration.Record(ctx, elapsed, topicAttr(msg.Topic))
}
