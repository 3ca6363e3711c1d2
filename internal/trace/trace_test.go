package trace

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/txmq/internal/pkg/valueobject"
)

func TestInjectThenExtractRoundTrips(t *testing.T) {
	// Arrange
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "producer-span")
	defer span.End()
	headers := valueobject.NewOrderedHeaders()

	// Act
	Inject(ctx, &headers)
	extractedCtx := Extract(context.Background(), headers)

	// Assert
	raw, ok := headers.Get("traceparent")
	if !ok {
		t.Fatalf("expected traceparent header to be set")
	}
	if raw[:3] != "00-" {
		t.Fatalf("expected version prefix 00-, got %q", raw)
	}

	gotSC := trace.SpanContextFromContext(extractedCtx)
	wantSC := span.SpanContext()
	if gotSC.TraceID() != wantSC.TraceID() {
		t.Fatalf("trace id mismatch: got %s want %s", gotSC.TraceID(), wantSC.TraceID())
	}
	if gotSC.SpanID() != wantSC.SpanID() {
		t.Fatalf("span id mismatch: got %s want %s", gotSC.SpanID(), wantSC.SpanID())
	}
	if !gotSC.IsRemote() {
		t.Fatalf("expected extracted span context to be marked remote")
	}
}

func TestExtractReturnsUnchangedCtxOnMissingHeader(t *testing.T) {
	// Arrange
	headers := valueobject.NewOrderedHeaders()
	ctx := context.Background()

	// Act
	got := Extract(ctx, headers)

	// Assert
	if got != ctx {
		t.Fatalf("expected unchanged ctx when traceparent is absent")
	}
}

func TestExtractReturnsUnchangedCtxOnMalformedHeader(t *testing.T) {
	// Arrange
	headers := valueobject.NewOrderedHeaders()
	headers.Set("traceparent", "not-a-valid-traceparent")
	ctx := context.Background()

	// Act
	got := Extract(ctx, headers)

	// Assert
	if got != ctx {
		t.Fatalf("expected unchanged ctx on malformed traceparent")
	}
}

func TestInjectNoopsWithoutActiveSpan(t *testing.T) {
	// Arrange
	headers := valueobject.NewOrderedHeaders()

	// Act
	Inject(context.Background(), &headers)

	// Assert
	if headers.Len() != 0 {
		t.Fatalf("expected no headers written without an active span, got %d", headers.Len())
	}
}
