package producer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shandysiswandi/txmq/internal/middleware"
	"github.com/shandysiswandi/txmq/internal/outbox"
	"github.com/shandysiswandi/txmq/internal/pkg/instrument"
	"github.com/shandysiswandi/txmq/internal/pkg/messaging"
	"github.com/shandysiswandi/txmq/internal/scope"
	"github.com/shandysiswandi/txmq/internal/serde"
	"github.com/shandysiswandi/txmq/internal/worker"
)

type fakePublisher struct {
	published []messaging.OutgoingMessage
	err       error
}

func (p *fakePublisher) Publish(
	ctx context.Context,
	destination string,
	msg messaging.OutgoingMessage,
) (messaging.PublishResult, error) {
	if p.err != nil {
		return messaging.PublishResult{}, p.err
	}
	p.published = append(p.published, msg)
	return messaging.PublishResult{Topic: destination}, nil
}

type fakeOutboxStore struct {
	inserted []outbox.Message
	deleted  []uuid.UUID
}

func (s *fakeOutboxStore) Insert(ctx context.Context, tx scope.Tx, msg outbox.Message) error {
	s.inserted = append(s.inserted, msg)
	return nil
}

func (s *fakeOutboxStore) Claim(ctx context.Context, limit int, predicate string, args ...any) ([]outbox.Message, error) {
	return nil, nil
}

func (s *fakeOutboxStore) Delete(ctx context.Context, ids []uuid.UUID) error {
	s.deleted = append(s.deleted, ids...)
	return nil
}

type fakeTx struct{}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }
func (fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func newTestDispatcher(t *testing.T, chain *middleware.Chain[string]) *Dispatcher[string] {
	t.Helper()
	ins, err := instrument.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("instrument.New: %v", err)
	}
	return New[string]("greetings", chain, ins, nil)
}

func TestProduceDirectPublishNoOutbox(t *testing.T) {
	// Arrange
	pub := &fakePublisher{}
	ser := serde.NewJSONSerializer[string]("greeting")
	chain := middleware.NewProducerChainBuilder[string](ser, TerminalStage[string](pub)).Build()
	d := newTestDispatcher(t, chain)

	// Act
	err := d.Produce(context.Background(), nil, "hello")

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(pub.published))
	}
	if string(pub.published[0].Body) != `"hello"` {
		t.Fatalf("unexpected body: %s", pub.published[0].Body)
	}
}

func TestProduceBackgroundOnlyOutboxNeverPublishesDirectly(t *testing.T) {
	// Arrange
	pub := &fakePublisher{}
	store := &fakeOutboxStore{}
	ser := serde.NewJSONSerializer[string]("greeting")
	forget := ForgetOutboxStage[string](
		store,
		middleware.OutboxSettings{Strategy: middleware.OutboxStrategyBackgroundOnly},
		func(msg string) string { return msg },
		TerminalStage[string](pub),
	)
	chain := middleware.NewProducerChainBuilder[string](ser, forget).Build()
	d := newTestDispatcher(t, chain)

	rc := scope.New(context.Background(), fakeTx{}, nil)

	// Act
	err := d.Produce(context.Background(), rc, "hello")

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatalf("expected no direct publish, got %d", len(pub.published))
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected 1 outbox row inserted, got %d", len(store.inserted))
	}
	if store.inserted[0].Topic != "greetings" {
		t.Fatalf("unexpected topic: %s", store.inserted[0].Topic)
	}
}

func TestProduceWithoutRequestContextFailsForOutboxStrategy(t *testing.T) {
	// Arrange
	pub := &fakePublisher{}
	store := &fakeOutboxStore{}
	ser := serde.NewJSONSerializer[string]("greeting")
	forget := ForgetOutboxStage[string](
		store,
		middleware.OutboxSettings{Strategy: middleware.OutboxStrategyBackgroundOnly},
		nil,
		TerminalStage[string](pub),
	)
	chain := middleware.NewProducerChainBuilder[string](ser, forget).Build()
	d := newTestDispatcher(t, chain)

	// Act
	err := d.Produce(context.Background(), nil, "hello")

	// Assert
	if err == nil {
		t.Fatalf("expected error when no request context is present")
	}
	if !errors.Is(err, errNoRequestContext) {
		t.Fatalf("expected errNoRequestContext, got %v", err)
	}
}

func TestProduceImmediateWithFallbackPublishesAfterCommit(t *testing.T) {
	// Arrange
	pub := &fakePublisher{}
	store := &fakeOutboxStore{}
	ser := serde.NewJSONSerializer[string]("greeting")
	forget := ForgetOutboxStage[string](
		store,
		middleware.OutboxSettings{Strategy: middleware.OutboxStrategyImmediateWithFallback},
		nil,
		TerminalStage[string](pub),
	)
	chain := middleware.NewProducerChainBuilder[string](ser, forget).Build()
	d := newTestDispatcher(t, chain)

	rc := scope.New(context.Background(), fakeTx{}, nil)

	// Act
	if err := d.Produce(context.Background(), rc, "hello"); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatalf("expected no publish before commit, got %d", len(pub.published))
	}
	if err := rc.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Assert
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 publish after commit, got %d", len(pub.published))
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected the outbox row to be deleted after a successful fallback publish, got %d", len(store.deleted))
	}
}

func TestForgetOutboxStageStampsPartitionOwnerWhenConfigured(t *testing.T) {
	// Arrange
	pub := &fakePublisher{}
	store := &fakeOutboxStore{}
	ser := serde.NewJSONSerializer[string]("greeting")
	forget := ForgetOutboxStage[string](
		store,
		middleware.OutboxSettings{
			Strategy:       middleware.OutboxStrategyBackgroundOnly,
			PartitionCount: 4,
		},
		func(msg string) string { return "order-42" },
		TerminalStage[string](pub),
	)
	chain := middleware.NewProducerChainBuilder[string](ser, forget).Build()
	d := newTestDispatcher(t, chain)

	rc := scope.New(context.Background(), fakeTx{}, nil)

	// Act
	if err := d.Produce(context.Background(), rc, "hello"); err != nil {
		t.Fatalf("Produce: %v", err)
	}

	// Assert
	if len(store.inserted) != 1 {
		t.Fatalf("expected 1 outbox row inserted, got %d", len(store.inserted))
	}
	want := worker.PartitionOf("order-42", 4)
	got := store.inserted[0].PartitionOwner
	if got == nil || *got != want {
		t.Fatalf("expected PartitionOwner %d, got %v", want, got)
	}
}

func TestForgetOutboxStageLeavesPartitionOwnerNilWhenUnconfigured(t *testing.T) {
	// Arrange
	pub := &fakePublisher{}
	store := &fakeOutboxStore{}
	ser := serde.NewJSONSerializer[string]("greeting")
	forget := ForgetOutboxStage[string](
		store,
		middleware.OutboxSettings{Strategy: middleware.OutboxStrategyBackgroundOnly},
		func(msg string) string { return "order-42" },
		TerminalStage[string](pub),
	)
	chain := middleware.NewProducerChainBuilder[string](ser, forget).Build()
	d := newTestDispatcher(t, chain)

	rc := scope.New(context.Background(), fakeTx{}, nil)

	// Act
	if err := d.Produce(context.Background(), rc, "hello"); err != nil {
		t.Fatalf("Produce: %v", err)
	}

	// Assert
	if store.inserted[0].PartitionOwner != nil {
		t.Fatalf("expected nil PartitionOwner, got %v", *store.inserted[0].PartitionOwner)
	}
}
