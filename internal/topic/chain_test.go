package topic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/txmq/internal/consumer"
	"github.com/shandysiswandi/txmq/internal/envelope"
	"github.com/shandysiswandi/txmq/internal/inbox"
	"github.com/shandysiswandi/txmq/internal/middleware"
	"github.com/shandysiswandi/txmq/internal/pkg/instrument"
	"github.com/shandysiswandi/txmq/internal/pkg/messaging"
	"github.com/shandysiswandi/txmq/internal/producer"
	"github.com/shandysiswandi/txmq/internal/serde"
)

type fakePublisher struct {
	published []messaging.OutgoingMessage
}

func (p *fakePublisher) Publish(
	_ context.Context,
	destination string,
	msg messaging.OutgoingMessage,
) (messaging.PublishResult, error) {
	p.published = append(p.published, msg)
	return messaging.PublishResult{Topic: destination}, nil
}

type fakeMessage struct {
	body    []byte
	headers []messaging.Header
}

func (m fakeMessage) Body() []byte                  { return m.body }
func (m fakeMessage) Key() []byte                   { return nil }
func (m fakeMessage) Headers() []messaging.Header   { return m.headers }
func (m fakeMessage) Attributes() map[string]string { return nil }
func (m fakeMessage) ID() string                    { return "fake-id" }
func (m fakeMessage) Topic() string                 { return "greetings" }
func (m fakeMessage) Subject() string               { return "" }
func (m fakeMessage) Timestamp() time.Time          { return time.Time{} }
func (m fakeMessage) Ack(context.Context) error      { return nil }

type fakeConsumer struct {
	msgs []fakeMessage
}

func (c *fakeConsumer) Consume(
	ctx context.Context,
	_ string,
	handler messaging.Handler,
	_ ...messaging.ConsumeOption,
) error {
	for _, m := range c.msgs {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

type fakeInboxCache struct {
	marked map[uint64]bool
}

func newFakeInboxCache() *fakeInboxCache { return &fakeInboxCache{marked: make(map[uint64]bool)} }

func (c *fakeInboxCache) Seen(_ context.Context, hashID uint64) (bool, error) {
	return c.marked[hashID], nil
}

func (c *fakeInboxCache) Mark(_ context.Context, hashID uint64, _ time.Duration) error {
	c.marked[hashID] = true
	return nil
}

func greetingHeaders() []messaging.Header {
	return []messaging.Header{{Key: envelope.TypeHeader, Value: []byte("greeting")}}
}

func TestBuildProducerChainPublishesDirectly(t *testing.T) {
	// Arrange
	pub := &fakePublisher{}
	ser := serde.NewJSONSerializer[greeting]("greeting")
	cfg, err := NewBuilder[greeting](nil).
		Name("greetings").
		Header("x-schema", func(greeting) string { return "v1" }).
		Serializer(ser).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	chain := BuildProducerChain[greeting](cfg, pub, nil, nil)

	ins, err := instrument.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("instrument.New: %v", err)
	}
	d := producer.New[greeting]("greetings", chain, ins, nil)

	// Act
	if err := d.Produce(context.Background(), nil, greeting{Text: "hi"}); err != nil {
		t.Fatalf("Produce: %v", err)
	}

	// Assert
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(pub.published))
	}
	found := false
	for _, h := range pub.published[0].Headers {
		if h.Key == "x-schema" && string(h.Value) == "v1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected x-schema header on published message")
	}
}

func TestBuildConsumerChainDeliversAndDedups(t *testing.T) {
	// Arrange
	cons := &fakeConsumer{msgs: []fakeMessage{
		{body: []byte(`{"Text":"hi"}`), headers: greetingHeaders()},
		{body: []byte(`{"Text":"hi"}`), headers: greetingHeaders()},
	}}
	ins, err := instrument.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("instrument.New: %v", err)
	}
	backpressure := middleware.DefaultBackpressureSettings()

	ser := serde.NewJSONSerializer[greeting]("greeting")
	cfg, err := NewBuilder[greeting](nil).
		Name("greetings").
		DedupFrom(func(g greeting) string { return g.Text }).
		Consumer(ConsumerSettings{
			Inbox:        middleware.InboxSettings{Enabled: true, TTL: time.Minute},
			Backpressure: backpressure,
		}).
		Serializer(ser).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	rt := consumer.New[greeting]("greetings", cons, nil, ins, nil, backpressure)
	cache := newFakeInboxCache()

	var duplicates int
	chain := BuildConsumerChain[greeting](cfg, rt, cache, func(context.Context, string) { duplicates++ })
	setRuntimeChain(rt, chain)

	// Act
	rt.Start(context.Background())
	if err := rt.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Assert
	first, ok, err := rt.Stream().Next(context.Background())
	if err != nil || !ok || first.Message.Text != "hi" {
		t.Fatalf("expected first delivery, got %+v ok=%v err=%v", first, ok, err)
	}
	_, ok, err = rt.Stream().Next(context.Background())
	if ok || !errors.Is(err, consumer.ErrStreamClosed) {
		t.Fatalf("expected the redelivered duplicate to be dropped, got ok=%v err=%v", ok, err)
	}
	if duplicates != 1 {
		t.Fatalf("expected 1 duplicate recorded, got %d", duplicates)
	}
}

func setRuntimeChain[T any](rt *consumer.Runtime[T], chain *middleware.Chain[T]) {
	rt.SetChain(chain)
}
