package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/txmq/internal/pkg/goerror"
	"github.com/shandysiswandi/txmq/internal/pkg/instrument"
	"github.com/shandysiswandi/txmq/internal/scope"
)

// Store persists and claims outbox rows. Insert always runs inside the
// caller's transaction (tx); Claim and Delete run against the pool directly
// since they belong to the background worker, not a request transaction.
type Store interface {
	Insert(ctx context.Context, tx scope.Tx, msg Message) error
	Claim(ctx context.Context, limit int, predicate string, args ...any) ([]Message, error)
	Delete(ctx context.Context, ids []uuid.UUID) error
}

// PgxStore is the Postgres-backed Store, grounded on the identity outbound
// db package's BeginTx/mapError/span idiom.
type PgxStore struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

// NewPgxStore returns a Store backed by conn.
func NewPgxStore(conn *pgxpool.Pool, ins instrument.Instrumentation) *PgxStore {
	return &PgxStore{conn: conn, ins: ins}
}

func (s *PgxStore) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}

	return err
}

func (s *PgxStore) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("outbox.store").Start(ctx, name)
}

func (s *PgxStore) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Insert writes a pending outbox row as part of tx. The caller is
// responsible for committing tx afterward (see scope.RequestContext).
func (s *PgxStore) Insert(ctx context.Context, tx scope.Tx, msg Message) (err error) {
	ctx, span := s.startSpan(ctx, "Insert")
	defer func() { s.endSpan(span, err) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_messages (id, aggregate_id, topic, type, payload, headers, created_at, partition_owner)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, msg.ID, msg.AggregateID, msg.Topic, msg.Type, msg.Payload, msg.Headers, msg.CreatedAt, msg.PartitionOwner)
	if err != nil {
		return s.mapError(err)
	}

	return nil
}

// Claim locks and returns up to limit pending rows matching predicate
// (appended to the WHERE clause, e.g. "partition_owner = $1"), using
// SELECT ... FOR UPDATE SKIP LOCKED so concurrent worker instances never
// claim the same row twice.
func (s *PgxStore) Claim(ctx context.Context, limit int, predicate string, args ...any) (msgs []Message, err error) {
	ctx, span := s.startSpan(ctx, "Claim")
	defer func() { s.endSpan(span, err) }()

	query := `
		SELECT id, aggregate_id, topic, type, payload, headers, created_at, partition_owner
		FROM outbox_messages
	`
	if predicate != "" {
		query += " WHERE " + predicate
	}
	query += fmt.Sprintf(" ORDER BY created_at ASC LIMIT $%d FOR UPDATE SKIP LOCKED", len(args)+1)

	rows, err := s.conn.Query(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Message
		if scanErr := rows.Scan(&m.ID, &m.AggregateID, &m.Topic, &m.Type, &m.Payload, &m.Headers, &m.CreatedAt, &m.PartitionOwner); scanErr != nil {
			return nil, s.mapError(scanErr)
		}
		msgs = append(msgs, m)
	}

	return msgs, s.mapError(rows.Err())
}

// Delete removes claimed-and-published rows by id.
func (s *PgxStore) Delete(ctx context.Context, ids []uuid.UUID) (err error) {
	ctx, span := s.startSpan(ctx, "Delete")
	defer func() { s.endSpan(span, err) }()

	if len(ids) == 0 {
		return nil
	}

	_, err = s.conn.Exec(ctx, `DELETE FROM outbox_messages WHERE id = ANY($1)`, ids)
	if err != nil {
		return s.mapError(err)
	}

	return nil
}
