// Package serde provides per-message-type serialization with type-tag
// headers, and a registry for resolving polymorphic payloads by tag.
package serde

import (
	"errors"

	"github.com/shandysiswandi/txmq/internal/pkg/valueobject"
)

// ErrUnknownType is returned when a consumed message's $type/$runtimeType
// header does not resolve to a registered type — a fatal decode error per
// spec §4.2.
var ErrUnknownType = errors.New("serde: unknown message type")

// ErrNilMessage is returned when Serialize is asked to encode a nil
// payload — a fatal serialization error per spec §4.1.
var ErrNilMessage = errors.New("serde: cannot serialize nil message")

// Serializer encodes and decodes a typed payload, optionally writing or
// reading the framework $type/$runtimeType headers.
type Serializer[T any] interface {
	// Serialize encodes msg, writing any framework headers it needs onto
	// headers (at minimum $type).
	Serialize(headers *valueobject.OrderedHeaders, msg T) ([]byte, error)

	// Deserialize decodes data into a T, using headers (at minimum $type)
	// to resolve the concrete payload shape.
	Deserialize(headers valueobject.OrderedHeaders, data []byte) (T, error)
}

// TypeTag returns the stable logical type name used for a type T's $type
// header and for the outbox/inbox `type` column. Callers supply it
// explicitly at topic-build time (Go has no stable runtime type name across
// module versions the way the source relied on reflection for).
type TypeTag string
