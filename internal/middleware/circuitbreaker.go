package middleware

import (
	"context"
	"errors"
	"time"

	"go.uber.org/atomic"

	"github.com/shandysiswandi/txmq/internal/envelope"
)

// ErrCircuitOpen is returned by the CircuitBreaker stage when it is
// rejecting calls without reaching next.
var ErrCircuitOpen = errors.New("middleware: circuit breaker open")

type breakerState int32

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker is a lock-free three-state breaker (closed/open/half-open)
// over go.uber.org/atomic counters, matching the no-global-mutex style the
// source uses for request-scoped counters.
type CircuitBreaker struct {
	settings CircuitBreakerSettings

	state       atomic.Int32
	failures    atomic.Uint32
	openedAt    atomic.Int64
	halfOpenUse atomic.Uint32
}

// NewCircuitBreaker returns a breaker starting in the closed state.
func NewCircuitBreaker(settings CircuitBreakerSettings) *CircuitBreaker {
	return &CircuitBreaker{settings: settings}
}

func (b *CircuitBreaker) allow() bool {
	switch breakerState(b.state.Load()) {
	case breakerClosed:
		return true
	case breakerOpen:
		if time.Since(time.Unix(0, b.openedAt.Load())) < b.settings.OpenDuration {
			return false
		}
		b.state.Store(int32(breakerHalfOpen))
		b.halfOpenUse.Store(0)
		return true
	case breakerHalfOpen:
		return b.halfOpenUse.Inc() <= b.settings.HalfOpenProbes
	default:
		return true
	}
}

func (b *CircuitBreaker) onResult(err error) {
	if err != nil {
		if breakerState(b.state.Load()) == breakerHalfOpen {
			b.trip()
			return
		}
		if b.failures.Inc() >= b.settings.FailureThreshold {
			b.trip()
		}
		return
	}

	if breakerState(b.state.Load()) == breakerHalfOpen {
		b.state.Store(int32(breakerClosed))
	}
	b.failures.Store(0)
}

func (b *CircuitBreaker) trip() {
	b.state.Store(int32(breakerOpen))
	b.openedAt.Store(time.Now().UnixNano())
	b.failures.Store(0)
}

// CircuitBreakerStage rejects calls to next with ErrCircuitOpen while the
// breaker is open, and trips/resets the breaker based on next's outcome.
func CircuitBreakerStage[T any](b *CircuitBreaker, next Stage[T]) Stage[T] {
	return func(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
		if !b.allow() {
			return false, ErrCircuitOpen
		}

		forward, err := next(ctx, env)
		b.onResult(err)
		return forward, err
	}
}
