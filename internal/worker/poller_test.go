package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shandysiswandi/txmq/internal/outbox"
	"github.com/shandysiswandi/txmq/internal/pkg/instrument"
	"github.com/shandysiswandi/txmq/internal/scope"
)

type fakeStore struct {
	pending []outbox.Message
	deleted []uuid.UUID
}

func (s *fakeStore) Insert(ctx context.Context, tx scope.Tx, msg outbox.Message) error {
	return nil
}

func (s *fakeStore) Claim(ctx context.Context, limit int, predicate string, args ...any) ([]outbox.Message, error) {
	n := limit
	if n > len(s.pending) {
		n = len(s.pending)
	}
	claimed := s.pending[:n]
	s.pending = s.pending[n:]
	return claimed, nil
}

func (s *fakeStore) Delete(ctx context.Context, ids []uuid.UUID) error {
	s.deleted = append(s.deleted, ids...)
	return nil
}

type fakeRepublisher struct {
	calls []outbox.Message
	err   error
}

func (r *fakeRepublisher) Republish(ctx context.Context, msg outbox.Message) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, msg)
	return nil
}

func TestPollerRepublishesAndDeletesClaimedRows(t *testing.T) {
	// Arrange
	store := &fakeStore{pending: []outbox.Message{
		{ID: uuid.New(), Topic: "greetings", Type: "greeting"},
	}}
	repub := &fakeRepublisher{}
	ins, err := instrument.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("instrument.New: %v", err)
	}
	p := New(store, DispatchTable{"greeting": repub}, Settings{Interval: 10 * time.Millisecond, BatchSize: 10}, ins, nil, nil)

	// Act
	claimed := p.pollOnce(context.Background())

	// Assert
	if claimed != 1 {
		t.Fatalf("expected 1 claimed row, got %d", claimed)
	}
	if len(repub.calls) != 1 {
		t.Fatalf("expected 1 republish call, got %d", len(repub.calls))
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected 1 deleted row, got %d", len(store.deleted))
	}
}

func TestPollerLeavesRowOnRepublishFailure(t *testing.T) {
	// Arrange
	store := &fakeStore{pending: []outbox.Message{
		{ID: uuid.New(), Topic: "greetings", Type: "greeting"},
	}}
	repub := &fakeRepublisher{err: errors.New("broker unavailable")}
	ins, err := instrument.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("instrument.New: %v", err)
	}
	p := New(store, DispatchTable{"greeting": repub}, Settings{Interval: 10 * time.Millisecond, BatchSize: 10}, ins, nil, nil)

	// Act
	p.pollOnce(context.Background())

	// Assert
	if len(store.deleted) != 0 {
		t.Fatalf("expected no deletion after a failed republish, got %d", len(store.deleted))
	}
}

func TestPollerReportsErrorForUnregisteredType(t *testing.T) {
	// Arrange
	store := &fakeStore{pending: []outbox.Message{
		{ID: uuid.New(), Topic: "greetings", Type: "unknown"},
	}}
	ins, err := instrument.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("instrument.New: %v", err)
	}
	p := New(store, DispatchTable{}, Settings{Interval: 10 * time.Millisecond, BatchSize: 10}, ins, nil, nil)

	// Act
	p.pollOnce(context.Background())

	// Assert
	if len(store.deleted) != 0 {
		t.Fatalf("expected the unregistered-type row to remain undeleted, got %d deleted", len(store.deleted))
	}
}

func TestPartitionOfIsDeterministicAndBounded(t *testing.T) {
	// Arrange
	const count = 4

	// Act
	a := PartitionOf("order-123", count)
	b := PartitionOf("order-123", count)

	// Assert
	if a != b {
		t.Fatalf("expected deterministic partition assignment, got %d then %d", a, b)
	}
	if a < 0 || int(a) >= count {
		t.Fatalf("expected partition in [0,%d), got %d", count, a)
	}

}
