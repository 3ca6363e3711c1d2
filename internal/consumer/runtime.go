package consumer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/txmq/internal/envelope"
	"github.com/shandysiswandi/txmq/internal/middleware"
	"github.com/shandysiswandi/txmq/internal/pkg/goroutine"
	"github.com/shandysiswandi/txmq/internal/pkg/instrument"
	"github.com/shandysiswandi/txmq/internal/pkg/messaging"
	"github.com/shandysiswandi/txmq/internal/pkg/valueobject"
	diagtrace "github.com/shandysiswandi/txmq/internal/trace"
)

// Runtime consumes a single source through a built consumer middleware chain
// and delivers the fully processed messages on a Stream.
//
// The broker-side fetch loop lives inside the messaging.Consumer
// implementation (one goroutine per Consume call, invoking Handler per
// message); Runtime's own goroutine, started by Start, just drives that
// Consume call and lets the chain's terminal stage push onto the bounded
// Stream channel.
type Runtime[T any] struct {
	source string
	cons   messaging.Consumer
	chain  *middleware.Chain[T]
	ins    instrument.Instrumentation
	diag   *diagtrace.Diagnostics
	mgr    *goroutine.Manager

	stream *Stream[T]
}

// New returns a Runtime that consumes source through cons, running every
// delivered message through chain (built by a
// middleware.ConsumerChainBuilder whose terminal stage is the one returned
// by DeliverStage for this same Runtime's Stream). diag may be nil, in
// which case no messages.consumed counter is recorded.
func New[T any](
	source string,
	cons messaging.Consumer,
	chain *middleware.Chain[T],
	ins instrument.Instrumentation,
	diag *diagtrace.Diagnostics,
	backpressure middleware.BackpressureSettings,
) *Runtime[T] {
	return &Runtime[T]{
		source: source,
		cons:   cons,
		chain:  chain,
		ins:    ins,
		diag:   diag,
		mgr:    goroutine.NewManager(1),
		stream: newStream[T](backpressure),
	}
}

// Stream returns the pull-based view delivered messages arrive on.
func (r *Runtime[T]) Stream() *Stream[T] { return r.stream }

// SetChain replaces the Runtime's consume chain. It exists because the
// chain's terminal stage (DeliverStage) is built from this same Runtime,
// so callers outside this package construct the Runtime first, build the
// chain against it, then wire it back with SetChain before calling Start.
func (r *Runtime[T]) SetChain(chain *middleware.Chain[T]) { r.chain = chain }

// Start launches the broker consume loop in a managed goroutine. Start
// returns immediately; consumption errors surface from Stop.
//
// Offsets are never auto-committed by the broker client (spec §4.6) —
// handle stores each message's offset itself, once it knows whether the
// message was delivered to the Stream or short-circuited beforehand.
func (r *Runtime[T]) Start(ctx context.Context) {
	r.mgr.Go(ctx, func(ctx context.Context) error {
		defer r.stream.close()
		return r.cons.Consume(ctx, r.source, r.handle, messaging.WithAutoAck(false))
	})
}

// Stop waits for the consume loop to return and reports its error, if any.
func (r *Runtime[T]) Stop() error {
	return r.mgr.Wait()
}

// handle adapts a broker-agnostic messaging.Message into an Envelope and
// runs it through the consumer chain. The chain never acks/nacks the
// broker message directly: DeliverStage, if reached, takes ownership of
// storing the offset (handed to business code as the Stream Delivery's
// Ack) so a message only advances once its own processing has committed;
// every other outcome — header filter miss, inbox duplicate, deserialize
// failure — never reaches DeliverStage, so handle stores the offset
// itself right here, since the message was consumed all the same
// (spec §4.6).
func (r *Runtime[T]) handle(ctx context.Context, msg messaging.Message) (err error) {
	headers := valueobject.NewOrderedHeaders()
	for _, h := range msg.Headers() {
		headers.Set(h.Key, string(h.Value))
	}
	ctx = diagtrace.Extract(ctx, headers)

	ctx, span := r.ins.Tracer("consumer").Start(ctx, "Consume",
		trace.WithAttributes(attribute.String("messaging.source", r.source)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	env := &envelope.Envelope[T]{
		Payload:   msg.Body(),
		Headers:   headers,
		Topic:     msg.Topic(),
		Timestamp: msg.Timestamp(),
	}
	populateCoordinates(env, msg)
	if key := msg.Key(); len(key) > 0 {
		k := string(key)
		env.Key = &k
	}

	handoff := &ackHandoff{ack: msg.Ack}
	chainErr := r.chain.Run(withAckHandoff(ctx, handoff), env)

	if !handoff.taken {
		if ackErr := msg.Ack(ctx); ackErr != nil && chainErr == nil {
			chainErr = ackErr
		}
	}

	if chainErr != nil {
		err = fmt.Errorf("consumer: %s: %w", r.source, chainErr)
		return err
	}

	if r.diag != nil {
		r.diag.RecordConsumed(ctx, r.source)
	}

	return nil
}

// populateCoordinates fills env's broker coordinates (spec §3.1) from msg,
// when msg exposes them through MetadataCarrier. Brokers that don't expose
// a coordinate (e.g. no leader epoch) simply leave it nil.
func populateCoordinates[T any](env *envelope.Envelope[T], msg messaging.Message) {
	mc, ok := msg.(messaging.MetadataCarrier)
	if !ok {
		return
	}
	meta := mc.Metadata()

	switch p := meta["partition"].(type) {
	case int32:
		env.Partition = &p
	case int:
		v := int32(p)
		env.Partition = &v
	}

	switch o := meta["offset"].(type) {
	case int64:
		env.Offset = &o
	case int:
		v := int64(o)
		env.Offset = &v
	}

	if le, ok := meta["leaderEpoch"].(int); ok {
		env.LeaderEpoch = &le
	}
}

// ackHandoff lets DeliverStage take over offset storage from handle: once
// taken is true, handle must not store the offset itself — it has been
// handed to business code as the Stream Delivery's Ack instead.
type ackHandoff struct {
	ack   func(ctx context.Context) error
	taken bool
}

type ackHandoffKey struct{}

func withAckHandoff(ctx context.Context, h *ackHandoff) context.Context {
	return context.WithValue(ctx, ackHandoffKey{}, h)
}

func ackHandoffFromContext(ctx context.Context) (*ackHandoff, bool) {
	h, ok := ctx.Value(ackHandoffKey{}).(*ackHandoff)
	return h, ok
}

// DeliverStage is the terminal consumer-chain stage: it pushes env onto
// rt's Stream, honoring the stream's backpressure settings. Under
// BackpressureApply it blocks until there is room or ctx is done; under
// BackpressureDropOldest it discards the oldest buffered item to make room
// rather than block the broker's fetch loop.
func DeliverStage[T any](rt *Runtime[T], settings middleware.BackpressureSettings) middleware.Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		item := streamItem[T]{env: env}
		if h, ok := ackHandoffFromContext(ctx); ok {
			h.taken = true
			item.ack = h.ack
		}

		switch settings.Mode {
		case middleware.BackpressureDropOldest:
			if rt.stream.highWatermark() {
				select {
				case <-rt.stream.items:
				default:
				}
			}
		case middleware.BackpressureApply:
			if err := rt.stream.waitForRoom(ctx); err != nil {
				return false, err
			}
		}

		select {
		case rt.stream.items <- item:
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}
