package producer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shandysiswandi/txmq/internal/envelope"
	"github.com/shandysiswandi/txmq/internal/middleware"
	"github.com/shandysiswandi/txmq/internal/outbox"
	"github.com/shandysiswandi/txmq/internal/pkg/messaging"
	"github.com/shandysiswandi/txmq/internal/pkg/uid"
	"github.com/shandysiswandi/txmq/internal/scope"
	"github.com/shandysiswandi/txmq/internal/worker"
)

// errNoRequestContext is returned when an outbox-backed produce call is
// made without a *scope.RequestContext — the outbox row has nowhere to
// attach its transaction.
var errNoRequestContext = errors.New("producer: outbox strategy requires a request-scoped transaction")

// TerminalStage publishes env directly through pub. It is the terminal
// stage of a chain whose OutboxSettings.Strategy is OutboxStrategyNone.
func TerminalStage[T any](pub messaging.Publisher) middleware.Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		headers := make([]messaging.Header, 0, env.Headers.Len())
		for _, pair := range env.Headers.Pairs() {
			headers = append(headers, messaging.Header{Key: pair.Key, Value: []byte(pair.Value)})
		}

		out := messaging.OutgoingMessage{
			Body:    env.Payload,
			Headers: headers,
		}
		if env.Key != nil {
			out.Key = []byte(*env.Key)
		}

		_, err := pub.Publish(ctx, env.Topic, out)
		return true, err
	}
}

// ForgetOutboxStage decides between a direct publish and an outbox write
// based on settings.Strategy:
//
//   - OutboxStrategyNone: falls straight through to next (the terminal
//     publish stage).
//   - OutboxStrategyBackgroundOnly: inserts the outbox row inside rc's
//     transaction and never calls next; the outbox worker publishes later.
//   - OutboxStrategyImmediateWithFallback: inserts the outbox row inside
//     rc's transaction, then defers a direct publish attempt to run after
//     commit; a failed attempt leaves the row for the worker to retry.
//
// aggregateIDFn derives the outbox row's aggregate id from the message, for
// the worker's optional Partitioned ownership strategy.
func ForgetOutboxStage[T any](
	store outbox.Store,
	settings middleware.OutboxSettings,
	aggregateIDFn func(T) string,
	next middleware.Stage[T],
) middleware.Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		if settings.Strategy == middleware.OutboxStrategyNone {
			return next(ctx, env)
		}

		rc, ok := scope.FromContext(ctx)
		if !ok || rc == nil {
			return false, errNoRequestContext
		}

		aggregateID := ""
		if aggregateIDFn != nil && env.Message != nil {
			aggregateID = aggregateIDFn(*env.Message)
		}
		typeTag, _ := env.Type()

		id := uid.NewUUID().GenerateUUID()
		msg := outbox.NewMessage(id, aggregateID, env.Topic, typeTag, env.Payload, env.Headers)

		if settings.PartitionCount > 0 {
			owner := worker.PartitionOf(aggregateID, settings.PartitionCount)
			msg.PartitionOwner = &owner
		}

		if err := store.Insert(ctx, rc.Tx(), msg); err != nil {
			return false, err
		}

		if settings.Strategy == middleware.OutboxStrategyImmediateWithFallback {
			rc.Defer(func(ctx context.Context) error {
				publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()

				if _, err := next(publishCtx, env); err != nil {
					return err
				}

				return store.Delete(ctx, []uuid.UUID{id})
			})
		}

		return false, nil
	}
}
