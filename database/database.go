// Package database defines the driver-facing contracts the transaction
// manager runs against, plus adapters for pgx and database/sql.
package database

import "context"

// Pool hands out connections. Every Conn returned by Acquire must be passed
// back to Release exactly once.
type Pool interface {
	Acquire(ctx context.Context) (Conn, error)
	Release(conn Conn)
}

// Conn is a pooled connection able to open a transaction.
type Conn interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is an open transaction. Begin on a Tx opens a savepoint whose Commit
// releases it and whose Rollback rolls back to it.
type Tx interface {
	Executor
	Begin(ctx context.Context) (Tx, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Executor runs statements.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (Result, error)
	// FetchAll returns every row. An empty result is a nil slice.
	FetchAll(ctx context.Context, sql string, args ...any) ([]Row, error)
	// FetchOne returns the first row, or nil when there is none.
	FetchOne(ctx context.Context, sql string, args ...any) (Row, error)
	// FetchValue returns the first column of the first row, or nil when
	// there is no row.
	FetchValue(ctx context.Context, sql string, args ...any) (any, error)
}

// Result describes the outcome of Exec.
type Result interface {
	RowsAffected() int64
	String() string
}

// Row maps column names to values.
type Row map[string]any

// Get returns the value stored under column and whether it was present.
func (r Row) Get(column string) (any, bool) {
	v, ok := r[column]
	return v, ok
}
