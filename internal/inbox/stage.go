package inbox

import (
	"context"
	"time"

	"github.com/shandysiswandi/txmq/internal/envelope"
	"github.com/shandysiswandi/txmq/internal/middleware"
)

// DedupFunc derives the value that, combined with the message's type tag,
// uniquely identifies one logical delivery (an order id, an idempotency
// key from a header, etc).
type DedupFunc[T any] func(msg T) string

// Stage returns the consume-path Inbox dedup stage: it checks cache for a
// previously marked fingerprint and short-circuits the chain (false, nil)
// on a hit, or marks the fingerprint and lets the message through otherwise.
//
// This is the fast-path half of the pattern only. cache is non-authoritative
// (see Cache's doc comment), so business code still owns the authoritative
// check: a handler with its own database transaction should call Store.Insert
// as part of that transaction and treat ErrDuplicate the same way it treats
// a cache hit here. onDuplicate, if non-nil, is called on a cache hit so
// callers can record a metric without this package depending on one.
func Stage[T any](
	cache Cache,
	dedupFn DedupFunc[T],
	ttl time.Duration,
	onDuplicate func(ctx context.Context, typeName string),
) middleware.Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		if dedupFn == nil || env.Message == nil {
			return true, nil
		}

		typeName, _ := env.RuntimeType()
		hashID := Fingerprint(typeName, dedupFn(*env.Message))

		seen, err := cache.Seen(ctx, hashID)
		if err != nil {
			return false, err
		}
		if seen {
			if onDuplicate != nil {
				onDuplicate(ctx, typeName)
			}
			return false, nil
		}

		if err := cache.Mark(ctx, hashID, ttl); err != nil {
			return false, err
		}

		return true, nil
	}
}
