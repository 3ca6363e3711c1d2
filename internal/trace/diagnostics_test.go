package trace

import (
	"context"
	"testing"
	"time"

	"github.com/shandysiswandi/txmq/internal/outbox"
	"github.com/shandysiswandi/txmq/internal/pkg/instrument"
)

func TestNewDiagnosticsWithoutPendingCallback(t *testing.T) {
	// Arrange
	ins, err := instrument.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("instrument.New: %v", err)
	}

	// Act
	d, err := New(ins, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Assert: recording through a noop meter must not panic.
	d.RecordProduced(context.Background(), "greetings")
	d.RecordConsumed(context.Background(), "greetings")
	d.RecordDuplicateFiltered(context.Background(), "greeting")
	d.RecordPublishDuration(context.Background(), outbox.Message{Topic: "greetings", CreatedAt: time.Now()})
}

func TestNewDiagnosticsWithPendingCallback(t *testing.T) {
	// Arrange
	ins, err := instrument.New(context.Background(), nil)
	if err != nil {
		t.Fatalf("instrument.New: %v", err)
	}

	// Act
	_, err = New(ins, func(ctx context.Context) (int64, error) {
		return 3, nil
	})

	// Assert
	if err != nil {
		t.Fatalf("New with pending callback: %v", err)
	}
}
