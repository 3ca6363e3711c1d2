package middleware

import (
	"context"

	"github.com/sethvargo/go-retry"

	"github.com/shandysiswandi/txmq/internal/envelope"
)

// RetryStage wraps next with an exponential backoff retry loop capped at
// MaxBackoff by retry.WithCappedDuration, the same combinator shape as the
// pgxcasbin watcher. Every error next returns is treated as retryable, up
// to MaxAttempts retries; the last error is returned once they run out.
func RetryStage[T any](settings RetrySettings, next Stage[T]) Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		b := retry.NewExponential(settings.InitialBackoff)
		b = retry.WithCappedDuration(settings.MaxBackoff, b)
		b = retry.WithMaxRetries(settings.MaxAttempts, b)

		var forward bool
		err := retry.Do(ctx, b, func(ctx context.Context) error {
			var err error
			forward, err = next(ctx, env)
			if err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			return false, err
		}

		return forward, nil
	}
}
