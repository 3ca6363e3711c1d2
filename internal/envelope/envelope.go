// Package envelope defines the typed carrier that flows through the
// producer and consumer middleware chains.
package envelope

import (
	"time"

	"github.com/shandysiswandi/txmq/internal/pkg/valueobject"
)

// TypeHeader carries the stable, logical type tag of the payload.
const TypeHeader = "$type"

// RuntimeTypeHeader carries the concrete runtime type when it differs from
// the declared logical type (polymorphic payloads).
const RuntimeTypeHeader = "$runtimeType"

// TraceParentHeader carries a W3C traceparent value.
const TraceParentHeader = "traceparent"

// TraceStateHeader carries a W3C tracestate value.
const TraceStateHeader = "tracestate"

// Envelope is the in-flight carrier around a typed message T.
//
// On the produce path New sets Message and the serializer stage rejects a
// nil one; on the consume path Message stays nil until the deserializer
// stage fills it in. Partition, Offset,
// Topic, Timestamp, and LeaderEpoch are broker coordinates populated only
// on the consume path.
type Envelope[T any] struct {
	Message *T
	Key     *string
	Payload []byte
	Headers valueobject.OrderedHeaders

	Topic       string
	Partition   *int32
	Offset      *int64
	Timestamp   time.Time
	LeaderEpoch *int
}

// New returns an Envelope ready for the producer chain, carrying msg and no
// payload or headers yet — those are filled in by the serializer and
// key/header stages.
func New[T any](msg T) *Envelope[T] {
	return &Envelope[T]{
		Message: &msg,
		Headers: valueobject.NewOrderedHeaders(),
	}
}

// Type returns the $type header value, if present.
func (e *Envelope[T]) Type() (string, bool) {
	return e.Headers.Get(TypeHeader)
}

// RuntimeType returns the $runtimeType header value if present, else the
// $type header value.
func (e *Envelope[T]) RuntimeType() (string, bool) {
	if v, ok := e.Headers.Get(RuntimeTypeHeader); ok {
		return v, true
	}
	return e.Type()
}

// HasPayload reports whether the serializer stage has produced a non-empty
// payload with a $type header — the produce-path invariant from spec §3.1.
func (e *Envelope[T]) HasPayload() bool {
	if len(e.Payload) == 0 {
		return false
	}
	_, ok := e.Type()
	return ok
}
