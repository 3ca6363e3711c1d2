// Package worker implements the background outbox-polling loop that
// republishes rows a producer's ForgetOutboxStage left behind, using
// SELECT ... FOR UPDATE SKIP LOCKED claims so multiple Poller instances can
// run against the same outbox table without double-publishing a row.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/txmq/internal/outbox"
	"github.com/shandysiswandi/txmq/internal/pkg/goroutine"
	"github.com/shandysiswandi/txmq/internal/pkg/instrument"
	diagtrace "github.com/shandysiswandi/txmq/internal/trace"
)

func errUnregisteredType(typeName string) error {
	return fmt.Errorf("worker: no republisher registered for type %q", typeName)
}

// Republisher publishes a single claimed outbox row. Implementations
// typically wrap a producer.Dispatcher's direct-publish chain (retry,
// circuit breaker, throttle — but never another outbox write).
type Republisher interface {
	Republish(ctx context.Context, msg outbox.Message) error
}

// DispatchTable routes a claimed row to its topic's Republisher by the
// row's Type column.
type DispatchTable map[string]Republisher

// Settings configures a Poller's polling cadence and claim strategy.
type Settings struct {
	// Interval is the delay between polls when the previous poll claimed
	// fewer than BatchSize rows.
	Interval time.Duration
	// BatchSize is the max rows claimed per poll.
	BatchSize int
	// Ownership narrows which rows this instance is allowed to claim.
	Ownership OwnershipStrategy
}

// Poller periodically claims pending outbox rows and republishes them.
type Poller struct {
	store    outbox.Store
	settings Settings
	ins      instrument.Instrumentation
	diag     *diagtrace.Diagnostics
	logger   *slog.Logger
	mgr      *goroutine.Manager

	dispatchMu sync.RWMutex
	dispatch   DispatchTable

	state stateMachine
}

// New returns a Poller claiming rows from store and dispatching them
// through dispatch. diag may be nil, in which case no
// outbox.publish_duration histogram is recorded.
func New(
	store outbox.Store,
	dispatch DispatchTable,
	settings Settings,
	ins instrument.Instrumentation,
	diag *diagtrace.Diagnostics,
	logger *slog.Logger,
) *Poller {
	if settings.Ownership == nil {
		settings.Ownership = SingleNode{}
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = 100
	}
	if settings.Interval <= 0 {
		settings.Interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dispatch == nil {
		dispatch = make(DispatchTable)
	}
	return &Poller{
		store:    store,
		dispatch: dispatch,
		settings: settings,
		ins:      ins,
		diag:     diag,
		logger:   logger,
		mgr:      goroutine.NewManager(1),
	}
}

// RegisterRepublisher binds typeName to r, so a future claimed row of that
// type dispatches through it. Topic wiring code calls this once per topic
// at startup, before Start.
func (p *Poller) RegisterRepublisher(typeName string, r Republisher) {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()
	p.dispatch[typeName] = r
}

// State returns the poller's current phase.
func (p *Poller) State() State { return p.state.get() }

// Start launches the poll loop in a managed goroutine and returns
// immediately.
func (p *Poller) Start(ctx context.Context) {
	p.mgr.Go(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(p.settings.Interval)
		defer ticker.Stop()

		for {
			if p.state.stopping() {
				return nil
			}

			claimed := p.pollOnce(ctx)

			// A full batch means there is likely more work waiting; loop
			// again immediately instead of waiting out the interval.
			if claimed >= p.settings.BatchSize {
				continue
			}

			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
}

// Stop signals the poll loop to finish its current iteration and exit,
// then waits for it.
func (p *Poller) Stop() error {
	p.state.set(StateStopping)
	return p.mgr.Wait()
}

func (p *Poller) pollOnce(ctx context.Context) int {
	p.state.set(StatePolling)

	ctx, span := p.ins.Tracer("worker").Start(ctx, "Poll")
	defer span.End()

	predicate, args := p.settings.Ownership.Predicate()

	msgs, err := p.store.Claim(ctx, p.settings.BatchSize, predicate, args...)
	if err != nil {
		p.logger.ErrorContext(ctx, "outbox claim failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.state.set(StateIdle)
		return 0
	}

	p.state.set(StateDispatching)
	p.dispatchAll(ctx, msgs)

	p.state.set(StateIdle)
	return len(msgs)
}

func (p *Poller) dispatchAll(ctx context.Context, msgs []outbox.Message) {
	published := make([]outbox.Message, 0, len(msgs))

	for _, msg := range msgs {
		if err := p.republish(ctx, msg); err != nil {
			p.logger.ErrorContext(ctx, "outbox republish failed",
				"id", msg.ID, "topic", msg.Topic, "type", msg.Type, "error", err)
			continue
		}
		if p.diag != nil {
			p.diag.RecordPublishDuration(ctx, msg)
		}
		published = append(published, msg)
	}

	if len(published) == 0 {
		return
	}

	ids := make([]uuid.UUID, len(published))
	for i, msg := range published {
		ids[i] = msg.ID
	}
	if err := p.store.Delete(ctx, ids); err != nil {
		p.logger.ErrorContext(ctx, "outbox delete after publish failed", "error", err)
	}
}

func (p *Poller) republish(ctx context.Context, msg outbox.Message) (err error) {
	ctx, span := p.ins.Tracer("worker").Start(ctx, "Republish",
		trace.WithAttributes(
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.message_type", msg.Type),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	p.dispatchMu.RLock()
	handler, ok := p.dispatch[msg.Type]
	p.dispatchMu.RUnlock()
	if !ok {
		err = errUnregisteredType(msg.Type)
		return err
	}

	return handler.Republish(ctx, msg)
}
