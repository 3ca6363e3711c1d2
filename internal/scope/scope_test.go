package scope

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeTx struct {
	commitErr   error
	rollbackErr error
}

func (f fakeTx) Commit(ctx context.Context) error   { return f.commitErr }
func (f fakeTx) Rollback(ctx context.Context) error { return f.rollbackErr }

func (f fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (f fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func TestRequestContextDeferRunsInFIFOOrderAfterCommit(t *testing.T) {
	// Arrange
	rc := New(context.Background(), fakeTx{}, nil)
	var order []int
	rc.Defer(func(ctx context.Context) error { order = append(order, 1); return nil })
	rc.Defer(func(ctx context.Context) error { order = append(order, 2); return nil })
	rc.Defer(func(ctx context.Context) error { order = append(order, 3); return nil })

	// Act
	err := rc.Commit()

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected commands to run in FIFO order, got %v", order)
	}
}

func TestRequestContextRollbackDiscardsCommands(t *testing.T) {
	// Arrange
	rc := New(context.Background(), fakeTx{}, nil)
	ran := false
	rc.Defer(func(ctx context.Context) error { ran = true; return nil })

	// Act
	if err := rc.Rollback(); err != nil {
		t.Fatalf("unexpected rollback error: %v", err)
	}

	// Assert
	if ran {
		t.Fatalf("expected deferred command to be discarded on rollback")
	}
}

func TestRequestContextCommitPropagatesTxError(t *testing.T) {
	// Arrange
	wantErr := errors.New("commit failed")
	rc := New(context.Background(), fakeTx{commitErr: wantErr}, nil)
	ran := false
	rc.Defer(func(ctx context.Context) error { ran = true; return nil })

	// Act
	err := rc.Commit()

	// Assert
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if ran {
		t.Fatalf("expected deferred command not to run when commit fails")
	}
}
