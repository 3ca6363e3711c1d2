package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/shandysiswandi/txmq/internal/envelope"
)

// ThrottleStage blocks until rate.Limiter admits the call, then forwards to
// next. ctx cancellation aborts the wait.
func ThrottleStage[T any](limiter *rate.Limiter, next Stage[T]) Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		if err := limiter.Wait(ctx); err != nil {
			return false, err
		}
		return next(ctx, env)
	}
}

// NewRateLimiter builds a rate.Limiter from ThrottleSettings.
func NewRateLimiter(settings ThrottleSettings) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(settings.RatePerSecond), settings.Burst)
}
