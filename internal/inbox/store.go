package inbox

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/codes"

	"github.com/shandysiswandi/txmq/internal/pkg/instrument"
	"github.com/shandysiswandi/txmq/internal/scope"
)

// ErrDuplicate is returned by Insert when the fingerprint already exists —
// mapped from the Postgres unique violation on hash_id.
var ErrDuplicate = errors.New("inbox: duplicate message")

// Store persists inbox fingerprints inside the caller's transaction, so a
// redelivered message either sees its own handler's domain writes committed
// or rolled back as a unit with the fingerprint row.
type Store interface {
	Insert(ctx context.Context, tx scope.Tx, msg Message) error
}

// PgxStore is the Postgres-backed Store.
type PgxStore struct {
	ins instrument.Instrumentation
}

// NewPgxStore returns a Store using ins for tracing.
func NewPgxStore(ins instrument.Instrumentation) *PgxStore {
	return &PgxStore{ins: ins}
}

func (s *PgxStore) mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}

	return err
}

// Insert writes the fingerprint row as part of tx. A caller should run this
// before invoking its handler logic and let a single commit cover both, so
// ErrDuplicate rolls back any partial handler side effects.
func (s *PgxStore) Insert(ctx context.Context, tx scope.Tx, msg Message) (err error) {
	ctx, span := s.ins.Tracer("inbox.store").Start(ctx, "Insert")
	defer func() {
		if err != nil && !errors.Is(err, ErrDuplicate) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO inbox_messages (hash_id, consumed_at)
		VALUES ($1, $2)
	`, msg.HashID, msg.ConsumedAt)
	if err != nil {
		return s.mapError(err)
	}

	return nil
}
