// Package trace carries W3C trace context across the producer/consumer
// boundary via envelope headers, and exposes the counters, histogram, and
// gauge the rest of the package reports through.
package trace

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/txmq/internal/envelope"
	"github.com/shandysiswandi/txmq/internal/pkg/valueobject"
)

// Inject writes the traceparent (and tracestate, if non-empty) headers from
// the span context on ctx. A ctx with no valid span context writes nothing.
func Inject(ctx context.Context, headers *valueobject.OrderedHeaders) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}

	flags := byte(0)
	if sc.IsSampled() {
		flags = 1
	}

	traceID := sc.TraceID()
	spanID := sc.SpanID()
	headers.Set(envelope.TraceParentHeader, fmt.Sprintf("00-%s-%s-%02x", traceID, spanID, flags))

	if ts := sc.TraceState().String(); ts != "" {
		headers.Set(envelope.TraceStateHeader, ts)
	}
}

// Extract parses a traceparent header (and tracestate, if present) off
// headers and returns ctx carrying the resulting remote SpanContext. An
// absent or malformed traceparent returns ctx unchanged — callers then
// start their own root span.
func Extract(ctx context.Context, headers valueobject.OrderedHeaders) context.Context {
	raw, ok := headers.Get(envelope.TraceParentHeader)
	if !ok {
		return ctx
	}

	sc, err := parseTraceParent(raw)
	if err != nil {
		return ctx
	}

	if rawState, ok := headers.Get(envelope.TraceStateHeader); ok {
		if ts, err := trace.ParseTraceState(rawState); err == nil {
			sc = sc.WithTraceState(ts)
		}
	}

	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

func parseTraceParent(raw string) (trace.SpanContext, error) {
	parts := strings.Split(raw, "-")
	if len(parts) != 4 {
		return trace.SpanContext{}, fmt.Errorf("trace: malformed traceparent %q", raw)
	}

	version, traceIDHex, spanIDHex, flagsHex := parts[0], parts[1], parts[2], parts[3]
	if version != "00" {
		return trace.SpanContext{}, fmt.Errorf("trace: unsupported traceparent version %q", version)
	}

	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("trace: bad trace id: %w", err)
	}
	spanID, err := trace.SpanIDFromHex(spanIDHex)
	if err != nil {
		return trace.SpanContext{}, fmt.Errorf("trace: bad span id: %w", err)
	}

	flagsRaw, err := hex.DecodeString(flagsHex)
	if err != nil || len(flagsRaw) != 1 {
		return trace.SpanContext{}, fmt.Errorf("trace: bad flags %q", flagsHex)
	}

	flags := trace.TraceFlags(0)
	if flagsRaw[0]&1 == 1 {
		flags = trace.FlagsSampled
	}

	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}), nil
}
