package topic

import (
	"github.com/shandysiswandi/txmq/internal/pkg/validator"
	"github.com/shandysiswandi/txmq/internal/serde"
)

// Builder assembles a Config[T] fluently, validating it at Build time
// instead of panicking on a misconfigured topic.
type Builder[T any] struct {
	cfg Config[T]
	v   validator.Validator
}

// NewBuilder returns a Builder validating with v. A nil v skips
// validation (useful in tests).
func NewBuilder[T any](v validator.Validator) *Builder[T] {
	return &Builder[T]{v: v, cfg: Config[T]{headers: make(map[string]HeaderFunc[T])}}
}

// Name sets the topic's broker destination name.
func (b *Builder[T]) Name(name string) *Builder[T] {
	b.cfg.Name = name
	return b
}

// KeyFrom sets the function deriving the broker partition key.
func (b *Builder[T]) KeyFrom(fn func(T) *string) *Builder[T] {
	b.cfg.KeyFrom = fn
	return b
}

// DedupFrom sets the function deriving the Inbox stage's dedup value from
// a consumed message. It has no effect unless Consumer.Inbox.Enabled.
func (b *Builder[T]) DedupFrom(fn func(T) string) *Builder[T] {
	b.cfg.DedupFrom = fn
	return b
}

// Header registers a per-message header projected onto every produced
// envelope for this topic.
func (b *Builder[T]) Header(name string, fn func(T) string) *Builder[T] {
	b.cfg.headers[name] = fn
	return b
}

// Serializer sets the topic's Serializer.
func (b *Builder[T]) Serializer(ser serde.Serializer[T]) *Builder[T] {
	b.cfg.serializer = ser
	return b
}

// Producer sets the topic's produce-path wrapping-stage settings.
func (b *Builder[T]) Producer(settings ProducerSettings) *Builder[T] {
	b.cfg.Producer = settings
	return b
}

// Consumer sets the topic's consume-path wrapping-stage settings.
func (b *Builder[T]) Consumer(settings ConsumerSettings) *Builder[T] {
	b.cfg.Consumer = settings
	return b
}

// Build validates the assembled Config and returns it, or the first
// validation error.
func (b *Builder[T]) Build() (*Config[T], error) {
	if b.cfg.serializer == nil {
		return nil, errMissingSerializer(b.cfg.Name)
	}

	if b.v != nil {
		if err := b.v.Validate(b.cfg); err != nil {
			return nil, err
		}
	}

	cfg := b.cfg
	return &cfg, nil
}
