// Package topic declares a typed topic's wiring: its name, key/header
// derivation, serializer, and the producer/consumer settings a
// middleware.ProducerChainBuilder/ConsumerChainBuilder assemble a chain
// from.
package topic

import (
	"fmt"

	"github.com/shandysiswandi/txmq/internal/middleware"
	"github.com/shandysiswandi/txmq/internal/serde"
)

// HeaderFunc derives a single static-ish header value from a message.
type HeaderFunc[T any] func(msg T) string

// Config is the immutable, validated description of one topic, produced by
// Builder.Build.
type Config[T any] struct {
	Name      string `validate:"required,min=1"`
	KeyFrom   func(T) *string
	DedupFrom func(T) string

	headers    map[string]HeaderFunc[T]
	serializer serde.Serializer[T]

	Producer ProducerSettings
	Consumer ConsumerSettings
}

// Serializer returns the topic's configured Serializer.
func (c *Config[T]) Serializer() serde.Serializer[T] { return c.serializer }

// StaticHeaderFuncs returns the per-message header functions registered on
// the topic, keyed by header name.
func (c *Config[T]) StaticHeaderFuncs() map[string]HeaderFunc[T] { return c.headers }

// KeyFunc adapts KeyFrom into a middleware.KeyFunc, treating a nil result
// as "no key".
func (c *Config[T]) KeyFunc() middleware.KeyFunc[T] {
	if c.KeyFrom == nil {
		return nil
	}
	return func(msg T) string {
		if k := c.KeyFrom(msg); k != nil {
			return *k
		}
		return ""
	}
}

// errMissingSerializer is returned by Build when no Serializer was
// configured.
func errMissingSerializer(name string) error {
	return fmt.Errorf("topic: %q: a Serializer is required", name)
}
