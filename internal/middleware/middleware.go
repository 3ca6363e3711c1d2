// Package middleware implements the composable producer/consumer pipeline
// that transforms envelopes end to end: serialization, key/header
// projection, trace propagation, retry, circuit breaking, throttling,
// batching, and the outbox/forget decision on the produce side; fetch,
// deserialization, header filtering, trace extraction, and inbox dedup on
// the consume side.
//
// A stage either forwards the envelope to the next stage, short-circuits
// (forward=false, err=nil — e.g. a header filter miss or a deduplicated
// inbox hit), or fails (err != nil). Stages whose settings report
// Enabled=false are omitted at chain-build time, never skipped at
// runtime, so a disabled stage costs nothing per message.
package middleware

import (
	"context"

	"github.com/shandysiswandi/txmq/internal/envelope"
)

// Stage transforms or inspects an envelope, deciding whether it continues
// down the chain.
type Stage[T any] func(ctx context.Context, env *envelope.Envelope[T]) (forward bool, err error)

// Chain is an ordered, pre-built sequence of stages ending in a terminal
// stage (the broker call on produce, the user handler on consume).
type Chain[T any] struct {
	stages []Stage[T]
}

// NewChain builds a Chain from already-resolved stages (disabled stages
// must already be excluded by the caller — see ProducerChainBuilder /
// ConsumerChainBuilder).
func NewChain[T any](stages ...Stage[T]) *Chain[T] {
	return &Chain[T]{stages: stages}
}

// Run executes the chain in order, stopping at the first stage that
// short-circuits or fails.
func (c *Chain[T]) Run(ctx context.Context, env *envelope.Envelope[T]) error {
	for _, stage := range c.stages {
		forward, err := stage(ctx, env)
		if err != nil {
			return err
		}
		if !forward {
			return nil
		}
	}
	return nil
}

// Enableable is implemented by every stage settings type.
type Enableable interface {
	IsEnabled() bool
}
