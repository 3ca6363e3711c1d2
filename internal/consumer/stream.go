// Package consumer runs a topic's consume-path middleware chain against a
// broker subscription and exposes the result as a pull-based Stream, with a
// single fetcher goroutine feeding a bounded, backpressured channel.
package consumer

import (
	"context"
	"errors"
	"sync"

	"github.com/shandysiswandi/txmq/internal/envelope"
	"github.com/shandysiswandi/txmq/internal/middleware"
)

// ErrStreamClosed is returned by Next once the stream has been drained and
// closed.
var ErrStreamClosed = errors.New("consumer: stream closed")

type streamItem[T any] struct {
	env *envelope.Envelope[T]
	ack func(ctx context.Context) error
	err error
}

// Delivery is one message pulled off a Stream, paired with the function
// that stores its offset with the broker (spec §4.6). Ack is a no-op
// until called; defer it into the same scope.RequestContext as your
// domain write so a handler rollback leaves the offset unstored and the
// message gets redelivered.
type Delivery[T any] struct {
	Message T
	Ack     func(ctx context.Context) error
}

func noopAck(context.Context) error { return nil }

// Stream is a pull-based view over a Runtime's delivered messages. Under
// BackpressureApply, the channel filling past HighWaterMarkRatio pauses
// DeliverStage's producer side until a Next call drains it back below
// LowWaterMarkRatio.
type Stream[T any] struct {
	settings middleware.BackpressureSettings
	items    chan streamItem[T]

	gateMu sync.Mutex
	paused bool
	resume chan struct{}
}

func newStream[T any](settings middleware.BackpressureSettings) *Stream[T] {
	return &Stream[T]{
		settings: settings,
		items:    make(chan streamItem[T], settings.Buffer),
	}
}

// Next blocks until a message is available, the stream is closed, or ctx is
// canceled.
func (s *Stream[T]) Next(ctx context.Context) (Delivery[T], bool, error) {
	var zero Delivery[T]

	select {
	case item, ok := <-s.items:
		if !ok {
			return zero, false, ErrStreamClosed
		}
		s.maybeResume()

		ack := item.ack
		if ack == nil {
			ack = noopAck
		}
		if item.err != nil {
			return Delivery[T]{Ack: ack}, true, item.err
		}
		if item.env.Message == nil {
			return Delivery[T]{Ack: ack}, true, nil
		}
		return Delivery[T]{Message: *item.env.Message, Ack: ack}, true, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// waitForRoom blocks until the buffer has drained below LowWaterMarkRatio,
// if it had previously climbed to HighWaterMarkRatio, or returns
// immediately otherwise.
func (s *Stream[T]) waitForRoom(ctx context.Context) error {
	s.gateMu.Lock()
	if !s.paused && s.highWatermark() {
		s.paused = true
		s.resume = make(chan struct{})
	}
	gate, paused := s.resume, s.paused
	s.gateMu.Unlock()

	if !paused {
		return nil
	}

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// maybeResume reopens the gate waitForRoom blocks on once the buffer has
// drained back below LowWaterMarkRatio.
func (s *Stream[T]) maybeResume() {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	if s.paused && s.lowWatermark() {
		s.paused = false
		close(s.resume)
	}
}

// highWatermark reports whether the buffered channel is at/above the
// configured high watermark.
func (s *Stream[T]) highWatermark() bool {
	if s.settings.Buffer == 0 {
		return false
	}
	return float64(len(s.items))/float64(s.settings.Buffer) >= s.settings.HighWaterMarkRatio
}

func (s *Stream[T]) lowWatermark() bool {
	if s.settings.Buffer == 0 {
		return true
	}
	return float64(len(s.items))/float64(s.settings.Buffer) <= s.settings.LowWaterMarkRatio
}

func (s *Stream[T]) close() {
	close(s.items)
}
