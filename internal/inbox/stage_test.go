package inbox

import (
	"context"
	"testing"
	"time"

	"github.com/shandysiswandi/txmq/internal/envelope"
)

type fakeCache struct {
	marked map[uint64]bool
}

func newFakeCache() *fakeCache { return &fakeCache{marked: make(map[uint64]bool)} }

func (c *fakeCache) Seen(ctx context.Context, hashID uint64) (bool, error) {
	return c.marked[hashID], nil
}

func (c *fakeCache) Mark(ctx context.Context, hashID uint64, ttl time.Duration) error {
	c.marked[hashID] = true
	return nil
}

func newOrderEnvelope(orderID string) *envelope.Envelope[string] {
	env := envelope.New(orderID)
	env.Headers.Set(envelope.TypeHeader, "order.placed")
	return env
}

func TestStageLetsFirstDeliveryThrough(t *testing.T) {
	// Arrange
	cache := newFakeCache()
	stage := Stage(cache, func(s string) string { return s }, time.Minute, nil)
	env := newOrderEnvelope("order-1")

	// Act
	cont, err := stage(context.Background(), env)

	// Assert
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if !cont {
		t.Fatalf("expected first delivery to continue the chain")
	}
}

func TestStageDropsRedeliveredMessage(t *testing.T) {
	// Arrange
	cache := newFakeCache()
	var dupType string
	stage := Stage(cache, func(s string) string { return s }, time.Minute, func(_ context.Context, t string) { dupType = t })
	env := newOrderEnvelope("order-1")

	// Act
	if _, err := stage(context.Background(), env); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	cont, err := stage(context.Background(), env)

	// Assert
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if cont {
		t.Fatalf("expected redelivered message to be dropped")
	}
	if dupType != "order.placed" {
		t.Fatalf("expected onDuplicate to receive the type tag, got %q", dupType)
	}
}

func TestStageTreatsDistinctOrdersIndependently(t *testing.T) {
	// Arrange
	cache := newFakeCache()
	stage := Stage(cache, func(s string) string { return s }, time.Minute, nil)

	// Act
	if _, err := stage(context.Background(), newOrderEnvelope("order-1")); err != nil {
		t.Fatalf("order-1: %v", err)
	}
	cont, err := stage(context.Background(), newOrderEnvelope("order-2"))

	// Assert
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if !cont {
		t.Fatalf("expected a different order id to continue the chain")
	}
}
