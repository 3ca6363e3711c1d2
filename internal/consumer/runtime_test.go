package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/txmq/internal/envelope"
	"github.com/shandysiswandi/txmq/internal/middleware"
	"github.com/shandysiswandi/txmq/internal/pkg/instrument"
	"github.com/shandysiswandi/txmq/internal/pkg/messaging"
	"github.com/shandysiswandi/txmq/internal/serde"
)

type fakeMessage struct {
	body    []byte
	key     []byte
	headers []messaging.Header
	topic   string
}

func (m fakeMessage) Body() []byte                  { return m.body }
func (m fakeMessage) Key() []byte                   { return m.key }
func (m fakeMessage) Headers() []messaging.Header   { return m.headers }
func (m fakeMessage) Attributes() map[string]string { return nil }
func (m fakeMessage) ID() string                    { return "fake-id" }
func (m fakeMessage) Topic() string                 { return m.topic }
func (m fakeMessage) Subject() string               { return "" }
func (m fakeMessage) Timestamp() time.Time          { return time.Time{} }
func (m fakeMessage) Ack(ctx context.Context) error { return nil }

type fakeConsumer struct {
	msgs []fakeMessage
}

func (c *fakeConsumer) Consume(
	ctx context.Context,
	source string,
	handler messaging.Handler,
	opts ...messaging.ConsumeOption,
) error {
	for _, m := range c.msgs {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func newTestJSONHeaders() []messaging.Header {
	return []messaging.Header{{Key: envelope.TypeHeader, Value: []byte("greeting")}}
}

func TestRuntimeDeliversMessagesToStream(t *testing.T) {
	// Arrange
	cons := &fakeConsumer{msgs: []fakeMessage{
		{body: []byte(`"hello"`), topic: "greetings", headers: newTestJSONHeaders()},
		{body: []byte(`"world"`), topic: "greetings", headers: newTestJSONHeaders()},
	}}
	ins, err := instrument.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("instrument.New: %v", err)
	}
	backpressure := middleware.DefaultBackpressureSettings()

	ser := serde.NewJSONSerializer[string]("greeting")
	rt := New[string]("greetings", cons, nil, ins, nil, backpressure)
	chain := middleware.NewConsumerChainBuilder[string](ser, DeliverStage(rt, backpressure)).Build()
	rt.chain = chain

	// Act
	rt.Start(context.Background())
	if err := rt.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Assert
	first, ok, err := rt.Stream().Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected first message, got ok=%v err=%v", ok, err)
	}
	if first.Message != "hello" {
		t.Fatalf("expected %q, got %q", "hello", first.Message)
	}
	if first.Ack == nil {
		t.Fatalf("expected a non-nil Ack for a delivered message")
	}
	if err := first.Ack(context.Background()); err != nil {
		t.Fatalf("Ack: %v", err)
	}

	second, ok, err := rt.Stream().Next(context.Background())
	if err != nil || !ok || second.Message != "world" {
		t.Fatalf("expected second message %q, got %q ok=%v err=%v", "world", second.Message, ok, err)
	}

	_, ok, err = rt.Stream().Next(context.Background())
	if ok || !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("expected ErrStreamClosed after draining, got ok=%v err=%v", ok, err)
	}
}

func TestDeliverStageBlocksUntilRoomUnderApplyMode(t *testing.T) {
	// Arrange
	settings := middleware.BackpressureSettings{
		Mode:               middleware.BackpressureApply,
		Buffer:             1,
		HighWaterMarkRatio: 0.9,
		LowWaterMarkRatio:  0.5,
	}
	ins, err := instrument.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("instrument.New: %v", err)
	}
	rt := New[string]("orders", &fakeConsumer{}, nil, ins, nil, settings)
	stage := DeliverStage(rt, settings)

	env := envelope.New("payload")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Act: fill the single buffer slot, then attempt a second delivery that
	// must block until ctx is canceled.
	if _, err := stage(ctx, env); err != nil {
		t.Fatalf("first deliver: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := stage(ctx, env)
		done <- err
	}()

	select {
	case <-done:
		t.Fatalf("expected second deliver to block while buffer is full")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for blocked deliver to unblock")
	}
}

func TestDeliverStageDropsOldestUnderDropOldestMode(t *testing.T) {
	// Arrange
	settings := middleware.BackpressureSettings{
		Mode:               middleware.BackpressureDropOldest,
		Buffer:             2,
		HighWaterMarkRatio: 0.5,
		LowWaterMarkRatio:  0.0,
	}
	ins, err := instrument.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("instrument.New: %v", err)
	}
	rt := New[string]("orders", &fakeConsumer{}, nil, ins, nil, settings)
	stage := DeliverStage(rt, settings)
	ctx := context.Background()

	oldest := envelope.New("oldest")
	newest := envelope.New("newest")

	// Act
	if _, err := stage(ctx, oldest); err != nil {
		t.Fatalf("deliver oldest: %v", err)
	}
	if _, err := stage(ctx, newest); err != nil {
		t.Fatalf("deliver newest: %v", err)
	}

	// Assert: the buffer is at/above its high watermark (1/2 >= 0.5), so the
	// second deliver should have dropped "oldest" and kept "newest".
	got, ok, err := rt.Stream().Next(ctx)
	if err != nil || !ok {
		t.Fatalf("expected a delivered message, got ok=%v err=%v", ok, err)
	}
	if got.Message != "newest" {
		t.Fatalf("expected oldest item dropped, got %q", got.Message)
	}
}
