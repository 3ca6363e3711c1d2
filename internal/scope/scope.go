// Package scope carries a single request's database transaction, which the
// outbox and inbox inserts run inside, and a buffer of commands that run
// only after that transaction commits — such as the direct publish an
// ImmediateWithFallback Produce call defers, or a delivery's offset Ack.
//
// This replaces the DI-scope container approach: rather than resolving a
// request-scoped publisher from a container, handler code is handed an
// explicit *RequestContext that already wraps its transaction.
package scope

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Tx is the minimal transaction surface the outbox and inbox stores need.
// Any *pgx.Tx value satisfies it; it exists so those stores (and tests)
// don't depend on pgx.Tx's full, much larger method set.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Command runs after the owning transaction has committed. A non-nil error
// is logged but never rolls the transaction back — it has already
// committed by the time commands run.
type Command func(ctx context.Context) error

// RequestContext binds one request's transaction to a FIFO buffer of
// post-commit commands. It is not safe for concurrent use; one request, one
// goroutine, one RequestContext.
type RequestContext struct {
	ctx    context.Context
	tx     Tx
	logger *slog.Logger

	commands []Command
}

// New returns a RequestContext wrapping tx. commands is pre-allocated with
// capacity 4 — most requests defer at most a handful of produce calls.
func New(ctx context.Context, tx Tx, logger *slog.Logger) *RequestContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestContext{
		ctx:      ctx,
		tx:       tx,
		logger:   logger,
		commands: make([]Command, 0, 4),
	}
}

// Context returns the request's context.Context.
func (r *RequestContext) Context() context.Context { return r.ctx }

// Tx returns the request's transaction handle.
func (r *RequestContext) Tx() Tx { return r.tx }

// Defer appends cmd to the post-commit buffer, run in FIFO order by
// Commit.
func (r *RequestContext) Defer(cmd Command) {
	r.commands = append(r.commands, cmd)
}

// Commit commits the underlying transaction, then runs every deferred
// command in the order they were added. A command error is logged and
// does not stop later commands from running — by the time commands run,
// the domain write they were deferred from is already durable.
func (r *RequestContext) Commit() error {
	if err := r.tx.Commit(r.ctx); err != nil {
		return err
	}

	for _, cmd := range r.commands {
		if err := cmd(r.ctx); err != nil {
			r.logger.ErrorContext(r.ctx, "post-commit command failed", "error", err)
		}
	}

	return nil
}

// Rollback rolls back the underlying transaction and discards any deferred
// commands without running them.
func (r *RequestContext) Rollback() error {
	r.commands = nil
	return r.tx.Rollback(r.ctx)
}

type ctxKey struct{}

// WithRequestContext attaches rc to ctx so a producer's middleware chain
// can reach it without threading it through the Stage signature.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext returns the RequestContext attached by WithRequestContext, if
// any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(ctxKey{}).(*RequestContext)
	return rc, ok
}
