package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/txmq/internal/envelope"
)

type batchItem[T any] struct {
	ctx  context.Context
	env  *envelope.Envelope[T]
	done chan error
}

// Batcher accumulates produce calls and flushes them to a terminal stage
// together once MaxItems is reached or MaxLinger elapses, whichever comes
// first. Callers block on Stage() until their item's flush completes.
type Batcher[T any] struct {
	settings BatchSettings
	next     Stage[T]

	mu      sync.Mutex
	pending []batchItem[T]
	timer   *time.Timer
}

// NewBatcher returns a Batcher that flushes buffered envelopes to next.
func NewBatcher[T any](settings BatchSettings, next Stage[T]) *Batcher[T] {
	return &Batcher[T]{settings: settings, next: next}
}

// Stage enqueues env and blocks until the batch it lands in has been
// flushed, returning that flush's per-item outcome.
func (b *Batcher[T]) Stage(ctx context.Context, env *envelope.Envelope[T]) (bool, error) {
	done := make(chan error, 1)

	b.mu.Lock()
	b.pending = append(b.pending, batchItem[T]{ctx: ctx, env: env, done: done})
	flush := len(b.pending) >= b.settings.MaxItems
	if !flush && b.timer == nil {
		b.timer = time.AfterFunc(b.settings.MaxLinger, b.flush)
	}
	if flush && b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	if flush {
		b.flush()
	}

	select {
	case err := <-done:
		return err == nil, err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (b *Batcher[T]) flush() {
	b.mu.Lock()
	items := b.pending
	b.pending = nil
	b.timer = nil
	b.mu.Unlock()

	for _, item := range items {
		_, err := b.next(item.ctx, item.env)
		item.done <- err
	}
}

// BatchStage adapts a Batcher into a Stage for chain composition.
func BatchStage[T any](b *Batcher[T]) Stage[T] {
	return b.Stage
}
