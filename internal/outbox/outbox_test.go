package outbox

import (
	"testing"

	"github.com/google/uuid"

	"github.com/shandysiswandi/txmq/internal/pkg/valueobject"
)

func TestNewMessageCarriesPayloadAndHeaders(t *testing.T) {
	// Arrange
	id := uuid.New()
	headers := valueobject.NewOrderedHeaders()
	headers.Set("$type", "order.placed")

	// Act
	msg := NewMessage(id, "order-1", "orders.events", "order.placed", []byte(`{}`), headers)

	// Assert
	if msg.ID != id {
		t.Fatalf("expected id to be preserved")
	}
	if msg.AggregateID != "order-1" || msg.Topic != "orders.events" || msg.Type != "order.placed" {
		t.Fatalf("unexpected message fields: %+v", msg)
	}
	if msg.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
	if got, _ := msg.Headers.Get("$type"); got != "order.placed" {
		t.Fatalf("expected headers to be carried, got %q", got)
	}
}
