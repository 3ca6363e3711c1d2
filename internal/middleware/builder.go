package middleware

import (
	"golang.org/x/time/rate"

	"github.com/shandysiswandi/txmq/internal/serde"
)

// ProducerChainBuilder assembles a produce-path Chain in the fixed order
// Serializer, KeyHeaders, TracePropagation, custom stages, Retry,
// CircuitBreaker, Throttle, Batch, ForgetOutbox, terminal. A stage whose
// settings are not configured (or whose setter is never called) is simply
// absent from the built chain.
type ProducerChainBuilder[T any] struct {
	serializer    serde.Serializer[T]
	keyFn         KeyFunc[T]
	staticHeaders StaticHeaders

	tracePropagation Stage[T]
	custom           []Stage[T]

	retry    *RetrySettings
	breaker  *CircuitBreaker
	throttle *rate.Limiter
	batch    *Batcher[T]
	forget   Stage[T]

	terminal Stage[T]
}

func NewProducerChainBuilder[T any](serializer serde.Serializer[T], terminal Stage[T]) *ProducerChainBuilder[T] {
	return &ProducerChainBuilder[T]{serializer: serializer, terminal: terminal}
}

func (b *ProducerChainBuilder[T]) WithKeyHeaders(keyFn KeyFunc[T], static StaticHeaders) *ProducerChainBuilder[T] {
	b.keyFn = keyFn
	b.staticHeaders = static
	return b
}

func (b *ProducerChainBuilder[T]) WithTracePropagation(stage Stage[T]) *ProducerChainBuilder[T] {
	b.tracePropagation = stage
	return b
}

func (b *ProducerChainBuilder[T]) WithCustom(stages ...Stage[T]) *ProducerChainBuilder[T] {
	b.custom = append(b.custom, stages...)
	return b
}

func (b *ProducerChainBuilder[T]) WithRetry(settings RetrySettings) *ProducerChainBuilder[T] {
	if settings.Enabled {
		b.retry = &settings
	}
	return b
}

func (b *ProducerChainBuilder[T]) WithCircuitBreaker(settings CircuitBreakerSettings) *ProducerChainBuilder[T] {
	if settings.Enabled {
		b.breaker = NewCircuitBreaker(settings)
	}
	return b
}

func (b *ProducerChainBuilder[T]) WithThrottle(settings ThrottleSettings) *ProducerChainBuilder[T] {
	if settings.Enabled {
		b.throttle = NewRateLimiter(settings)
	}
	return b
}

func (b *ProducerChainBuilder[T]) WithBatch(settings BatchSettings, next Stage[T]) *ProducerChainBuilder[T] {
	if settings.Enabled {
		b.batch = NewBatcher(settings, next)
	}
	return b
}

func (b *ProducerChainBuilder[T]) WithForgetOutbox(stage Stage[T]) *ProducerChainBuilder[T] {
	b.forget = stage
	return b
}

// Build assembles the tail of the chain: ForgetOutbox, then Batch, when set,
// take the terminal stage's place (each reaches the terminal only through
// the next stage it was constructed with), and Throttle, CircuitBreaker and
// Retry are then wrapped around that tail from the inside out. The flat,
// non-wrapping stages are prepended in order.
func (b *ProducerChainBuilder[T]) Build() *Chain[T] {
	tail := b.terminal

	if b.forget != nil {
		tail = b.forget
	}
	if b.batch != nil {
		tail = BatchStage(b.batch)
	}
	if b.throttle != nil {
		tail = ThrottleStage[T](b.throttle, tail)
	}
	if b.breaker != nil {
		tail = CircuitBreakerStage(b.breaker, tail)
	}
	if b.retry != nil {
		tail = RetryStage(*b.retry, tail)
	}

	stages := []Stage[T]{SerializerStage(b.serializer)}
	if b.keyFn != nil || len(b.staticHeaders) > 0 {
		stages = append(stages, KeyHeadersStage(b.keyFn, b.staticHeaders))
	}
	if b.tracePropagation != nil {
		stages = append(stages, b.tracePropagation)
	}
	stages = append(stages, b.custom...)
	stages = append(stages, tail)

	return NewChain(stages...)
}

// ConsumerChainBuilder assembles a consume-path Chain in the fixed order
// TerminalFetch (supplied by the caller as the entry envelope, not a
// stage), Deserializer, HeaderFilter, TraceExtract, Inbox, custom stages,
// Handler.
type ConsumerChainBuilder[T any] struct {
	deserializer serde.Serializer[T]

	headerFilter  *HeaderFilterSettings
	traceExtract  Stage[T]
	inbox         Stage[T]
	custom        []Stage[T]

	handler Stage[T]
}

func NewConsumerChainBuilder[T any](deserializer serde.Serializer[T], handler Stage[T]) *ConsumerChainBuilder[T] {
	return &ConsumerChainBuilder[T]{deserializer: deserializer, handler: handler}
}

func (b *ConsumerChainBuilder[T]) WithHeaderFilter(settings HeaderFilterSettings) *ConsumerChainBuilder[T] {
	if settings.Enabled {
		b.headerFilter = &settings
	}
	return b
}

func (b *ConsumerChainBuilder[T]) WithTraceExtract(stage Stage[T]) *ConsumerChainBuilder[T] {
	b.traceExtract = stage
	return b
}

func (b *ConsumerChainBuilder[T]) WithInbox(stage Stage[T]) *ConsumerChainBuilder[T] {
	b.inbox = stage
	return b
}

func (b *ConsumerChainBuilder[T]) WithCustom(stages ...Stage[T]) *ConsumerChainBuilder[T] {
	b.custom = append(b.custom, stages...)
	return b
}

// Build returns the flat chain run after a message has been fetched from
// the broker and placed into an Envelope by the consumer runtime.
func (b *ConsumerChainBuilder[T]) Build() *Chain[T] {
	stages := []Stage[T]{DeserializerStage(b.deserializer)}

	if b.headerFilter != nil {
		stages = append(stages, HeaderFilterStage[T](*b.headerFilter))
	}
	if b.traceExtract != nil {
		stages = append(stages, b.traceExtract)
	}
	if b.inbox != nil {
		stages = append(stages, b.inbox)
	}
	stages = append(stages, b.custom...)
	stages = append(stages, b.handler)

	return NewChain(stages...)
}
