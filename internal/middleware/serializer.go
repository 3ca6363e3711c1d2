package middleware

import (
	"context"

	"github.com/shandysiswandi/txmq/internal/envelope"
	"github.com/shandysiswandi/txmq/internal/serde"
)

// SerializerStage encodes env.Message into env.Payload using ser, and is
// always the first stage of a producer chain.
func SerializerStage[T any](ser serde.Serializer[T]) Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		if env.Message == nil {
			return false, serde.ErrNilMessage
		}

		data, err := ser.Serialize(&env.Headers, *env.Message)
		if err != nil {
			return false, err
		}

		env.Payload = data
		return true, nil
	}
}

// DeserializerStage decodes env.Payload into env.Message using ser, and is
// always the second stage of a consumer chain (after TerminalFetch).
func DeserializerStage[T any](ser serde.Serializer[T]) Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		msg, err := ser.Deserialize(env.Headers, env.Payload)
		if err != nil {
			return false, err
		}

		env.Message = &msg
		return true, nil
	}
}
