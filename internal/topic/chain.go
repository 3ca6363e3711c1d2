package topic

import (
	"context"

	"github.com/shandysiswandi/txmq/internal/consumer"
	"github.com/shandysiswandi/txmq/internal/envelope"
	"github.com/shandysiswandi/txmq/internal/inbox"
	"github.com/shandysiswandi/txmq/internal/middleware"
	"github.com/shandysiswandi/txmq/internal/outbox"
	"github.com/shandysiswandi/txmq/internal/pkg/messaging"
	"github.com/shandysiswandi/txmq/internal/producer"
	"github.com/shandysiswandi/txmq/internal/trace"
)

// dynamicHeadersStage projects cfg's per-message HeaderFuncs onto the
// envelope. middleware.KeyHeadersStage only supports fixed string headers,
// so headers that vary per message are applied as a separate custom stage
// instead.
func dynamicHeadersStage[T any](headers map[string]HeaderFunc[T]) middleware.Stage[T] {
	return func(_ context.Context, env *envelope.Envelope[T]) (bool, error) {
		if env.Message == nil {
			return true, nil
		}
		for name, fn := range headers {
			env.Headers.Set(name, fn(*env.Message))
		}
		return true, nil
	}
}

// BuildProducerChain assembles cfg's produce-path Chain against pub and
// store, in the fixed stage order a middleware.ProducerChainBuilder
// enforces. aggregateIDFn derives the outbox row's aggregate id (empty
// string if nil).
func BuildProducerChain[T any](
	cfg *Config[T],
	pub messaging.Publisher,
	store outbox.Store,
	aggregateIDFn func(T) string,
) *middleware.Chain[T] {
	terminal := producer.TerminalStage[T](pub)
	forget := producer.ForgetOutboxStage(store, cfg.Producer.Outbox, aggregateIDFn, terminal)

	builder := middleware.NewProducerChainBuilder[T](cfg.serializer, terminal).
		WithKeyHeaders(cfg.KeyFunc(), nil).
		WithTracePropagation(trace.PropagationStage[T]())

	if len(cfg.headers) > 0 {
		builder = builder.WithCustom(dynamicHeadersStage(cfg.headers))
	}

	return builder.
		WithRetry(cfg.Producer.Retry).
		WithCircuitBreaker(cfg.Producer.CircuitBreaker).
		WithThrottle(cfg.Producer.Throttle).
		WithBatch(cfg.Producer.Batch, forget).
		WithForgetOutbox(forget).
		Build()
}

// BuildRepublishChain assembles a direct-publish-only Chain for cfg: the
// same Retry/CircuitBreaker/Throttle resilience as BuildProducerChain, but
// no ForgetOutbox stage. A worker.Republisher must never write another
// outbox row for a message it claimed from the outbox, so it publishes
// through this chain instead of the one returned by BuildProducerChain.
func BuildRepublishChain[T any](cfg *Config[T], pub messaging.Publisher) *middleware.Chain[T] {
	terminal := producer.TerminalStage[T](pub)

	return middleware.NewProducerChainBuilder[T](cfg.serializer, terminal).
		WithRetry(cfg.Producer.Retry).
		WithCircuitBreaker(cfg.Producer.CircuitBreaker).
		WithThrottle(cfg.Producer.Throttle).
		Build()
}

// BuildConsumerChain assembles cfg's consume-path Chain, delivering
// processed messages onto rt's Stream. cache backs the Inbox stage's
// dedup fast path; it is ignored when cfg.Consumer.Inbox is disabled.
func BuildConsumerChain[T any](
	cfg *Config[T],
	rt *consumer.Runtime[T],
	cache inbox.Cache,
	onDuplicate func(ctx context.Context, typeName string),
) *middleware.Chain[T] {
	deliver := consumer.DeliverStage(rt, cfg.Consumer.Backpressure)

	builder := middleware.NewConsumerChainBuilder[T](cfg.serializer, deliver).
		WithHeaderFilter(cfg.Consumer.HeaderFilter).
		WithTraceExtract(trace.ExtractStage[T]())

	if cfg.Consumer.Inbox.Enabled && cache != nil {
		builder = builder.WithInbox(inbox.Stage(cache, cfg.DedupFrom, cfg.Consumer.Inbox.TTL, onDuplicate))
	}

	return builder.Build()
}
