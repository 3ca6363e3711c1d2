package middleware

import (
	"context"

	"github.com/shandysiswandi/txmq/internal/envelope"
)

// KeyFunc derives the broker partition key from a message.
type KeyFunc[T any] func(msg T) string

// StaticHeaders is a fixed set of headers projected onto every envelope
// produced for a topic (e.g. a schema version, a producer name).
type StaticHeaders map[string]string

// KeyHeadersStage sets env.Key from keyFn (when non-nil) and copies
// static headers onto env.Headers without overwriting headers the
// serializer stage already set.
func KeyHeadersStage[T any](keyFn KeyFunc[T], static StaticHeaders) Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		if keyFn != nil && env.Message != nil {
			key := keyFn(*env.Message)
			env.Key = &key
		}

		for k, v := range static {
			if !env.Headers.Has(k) {
				env.Headers.Set(k, v)
			}
		}

		return true, nil
	}
}

// HeaderFilterStage short-circuits the consumer chain unless every
// configured filter matches the envelope's headers (logical AND).
func HeaderFilterStage[T any](settings HeaderFilterSettings) Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		for k, want := range settings.Filters {
			got, ok := env.Headers.Get(k)
			if !ok || got != want {
				return false, nil
			}
		}
		return true, nil
	}
}
