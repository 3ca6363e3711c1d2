package trace

import (
	"context"

	"github.com/shandysiswandi/txmq/internal/envelope"
	"github.com/shandysiswandi/txmq/internal/middleware"
)

// PropagationStage injects the active span's W3C trace context onto
// env.Headers. It is the produce-path TracePropagation stage.
func PropagationStage[T any]() middleware.Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		Inject(ctx, &env.Headers)
		return true, nil
	}
}

// ExtractStage occupies the TraceExtract position in the consume chain. A
// Stage cannot hand later stages a replacement ctx, so it does not call
// Extract itself — env.Headers already carries the traceparent by the time
// any stage runs, and any stage (or the Handler) that wants a properly
// parented span calls Extract(ctx, env.Headers) directly. The stage exists
// so the chain's built shape still names this position, matching the
// produce-path's symmetric TracePropagation stage.
func ExtractStage[T any]() middleware.Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		return true, nil
	}
}
