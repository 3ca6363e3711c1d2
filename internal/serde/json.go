package serde

import (
	"encoding/json"
	"fmt"

	"github.com/shandysiswandi/txmq/internal/envelope"
	"github.com/shandysiswandi/txmq/internal/pkg/valueobject"
)

// Typed is implemented by concrete payload types that can appear as a
// runtime value of a polymorphic declared type T (an interface). Its
// TypeTag is written to the $runtimeType header so the deserializer can
// pick the right concrete type out of a JSONSerializer's variant registry.
type Typed interface {
	TypeTag() string
}

// JSONSerializer is the default Serializer: JSON encoding, with $type set
// to the topic's declared tag and, for polymorphic topics, $runtimeType set
// to the concrete value's own tag.
//
// Polymorphism is handled by an explicit tagged-variant registry built at
// startup (RegisterVariant), replacing the reflection-driven discriminator
// the source relied on.
type JSONSerializer[T any] struct {
	tag      TypeTag
	variants map[string]func() T
}

// NewJSONSerializer returns a JSONSerializer for the declared logical type
// tag. Most topics need nothing further; polymorphic topics should also
// call RegisterVariant for each concrete type that can appear.
func NewJSONSerializer[T any](tag TypeTag) *JSONSerializer[T] {
	return &JSONSerializer[T]{tag: tag}
}

// RegisterVariant binds a concrete $runtimeType tag to a zero-value
// factory, so Deserialize can materialize the right concrete type when T is
// an interface.
func (s *JSONSerializer[T]) RegisterVariant(tag string, factory func() T) {
	if s.variants == nil {
		s.variants = make(map[string]func() T)
	}
	s.variants[tag] = factory
}

// Serialize encodes msg as JSON, writing $type (and $runtimeType when msg
// implements Typed with a tag different from the declared one).
func (s *JSONSerializer[T]) Serialize(headers *valueobject.OrderedHeaders, msg T) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("serde: json marshal: %w", err)
	}

	headers.Set(envelope.TypeHeader, string(s.tag))
	if typed, ok := any(msg).(Typed); ok {
		if rt := typed.TypeTag(); rt != "" && rt != string(s.tag) {
			headers.Set(envelope.RuntimeTypeHeader, rt)
		}
	}

	return data, nil
}

// Deserialize decodes data into a T, resolving the concrete variant from
// $runtimeType (falling back to $type) when a registry is present.
func (s *JSONSerializer[T]) Deserialize(headers valueobject.OrderedHeaders, data []byte) (T, error) {
	var zero T

	tag, ok := headers.Get(envelope.RuntimeTypeHeader)
	if !ok {
		tag, ok = headers.Get(envelope.TypeHeader)
	}
	if !ok {
		return zero, fmt.Errorf("serde: %w: missing %s/%s header", ErrUnknownType, envelope.RuntimeTypeHeader, envelope.TypeHeader)
	}

	if len(s.variants) > 0 {
		factory, found := s.variants[tag]
		if !found {
			return zero, fmt.Errorf("serde: %w: %q", ErrUnknownType, tag)
		}
		out := factory()
		if err := json.Unmarshal(data, &out); err != nil {
			return zero, fmt.Errorf("serde: json unmarshal: %w", err)
		}
		return out, nil
	}

	if tag != string(s.tag) {
		return zero, fmt.Errorf("serde: %w: %q (expected %q)", ErrUnknownType, tag, s.tag)
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("serde: json unmarshal: %w", err)
	}
	return out, nil
}
