package tx

import (
	"context"
	"database/sql"
	"sync"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Executor is the query surface shared by *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ExecutorFrom returns the transaction bound to ctx, or db when the caller is
// not inside RunInTx. Stores use it so the same method joins an outer
// transaction when there is one.
func ExecutorFrom(ctx context.Context, db *sql.DB) Executor {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// Runner executes fn as one unit of work. Implementations bind whatever they
// need to ctx; stores pick it up through ExecutorFrom.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LockingRunner serializes units of work with a process-wide mutex. It backs
// the in-memory stores, which have no rollback: the unit is isolated from other
// units but partial writes of a failed unit remain.
type LockingRunner struct {
	mu sync.Mutex
}

func NewLockingRunner() *LockingRunner {
	return &LockingRunner{}
}

func (r *LockingRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}
