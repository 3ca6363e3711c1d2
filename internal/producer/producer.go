// Package producer binds a topic's built middleware chain to a broker
// Publisher, turning a typed Produce call into a serialized, routed publish
// (or outbox row, depending on the chain's outbox/forget stage).
package producer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/txmq/internal/envelope"
	"github.com/shandysiswandi/txmq/internal/middleware"
	"github.com/shandysiswandi/txmq/internal/pkg/instrument"
	"github.com/shandysiswandi/txmq/internal/scope"
	diagtrace "github.com/shandysiswandi/txmq/internal/trace"
)

// Dispatcher produces messages of type T for a single topic.
type Dispatcher[T any] struct {
	topic string
	chain *middleware.Chain[T]
	ins   instrument.Instrumentation
	diag  *diagtrace.Diagnostics
}

// New returns a Dispatcher bound to topic, publishing through chain (built
// by a middleware.ProducerChainBuilder). diag may be nil, in which case no
// messages.produced counter is recorded.
func New[T any](
	topic string,
	chain *middleware.Chain[T],
	ins instrument.Instrumentation,
	diag *diagtrace.Diagnostics,
) *Dispatcher[T] {
	return &Dispatcher[T]{topic: topic, chain: chain, ins: ins, diag: diag}
}

// Produce runs msg through the produce chain. When rc is non-nil and the
// chain's terminal stage is outbox-backed, the actual broker call (if any)
// is deferred onto rc so it only happens after rc.Commit(). With a nil rc, a
// chain whose outbox strategy is None publishes immediately, outside any
// transaction, and an outbox-backed chain returns an error.
func (d *Dispatcher[T]) Produce(ctx context.Context, rc *scope.RequestContext, msg T) (err error) {
	ctx, span := d.ins.Tracer("producer").Start(ctx, "Produce",
		trace.WithAttributes(attribute.String("messaging.destination", d.topic)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	env := envelope.New(msg)
	env.Topic = d.topic

	if rc != nil {
		ctx = scope.WithRequestContext(rc.Context(), rc)
	}

	if err = d.chain.Run(ctx, env); err != nil {
		return fmt.Errorf("producer: %s: %w", d.topic, err)
	}

	if d.diag != nil {
		d.diag.RecordProduced(ctx, d.topic)
	}

	return nil
}
