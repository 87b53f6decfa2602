package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool implements Pool for pgxpool.Pool.
type PgxPool struct {
	pool *pgxpool.Pool
}

// NewPgxPool wraps an open pgxpool.Pool.
func NewPgxPool(pool *pgxpool.Pool) *PgxPool {
	return &PgxPool{pool: pool}
}

// Acquire checks a connection out of the pool.
func (p *PgxPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &PgxConn{conn: conn}, nil
}

// Release returns conn to the pool. Releasing twice is a no-op.
func (p *PgxPool) Release(conn Conn) {
	c, ok := conn.(*PgxConn)
	if !ok || c.conn == nil {
		return
	}
	c.conn.Release()
	c.conn = nil
}

// Ping verifies a connection can be established.
func (p *PgxPool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Stat exposes the underlying pool statistics.
func (p *PgxPool) Stat() *pgxpool.Stat {
	return p.pool.Stat()
}

// Raw returns the wrapped pool.
func (p *PgxPool) Raw() *pgxpool.Pool {
	return p.pool
}

// Close closes every connection in the pool.
func (p *PgxPool) Close() {
	p.pool.Close()
}

// PgxConn implements Conn for a pooled pgx connection.
type PgxConn struct {
	conn *pgxpool.Conn
}

// Begin starts a transaction on the connection.
func (c *PgxConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PgxTx{tx: tx}, nil
}

// PgxTx implements Tx for pgx.Tx. Begin maps to a pgx pseudo nested
// transaction, which pgx implements with SAVEPOINT.
type PgxTx struct {
	tx pgx.Tx
}

func (t *PgxTx) Begin(ctx context.Context) (Tx, error) {
	tx, err := t.tx.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &PgxTx{tx: tx}, nil
}

func (t *PgxTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *PgxTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// Raw returns the wrapped pgx transaction.
func (t *PgxTx) Raw() pgx.Tx {
	return t.tx
}

func (t *PgxTx) Exec(ctx context.Context, sql string, args ...any) (Result, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &PgxResult{cmdTag: tag}, nil
}

func (t *PgxTx) FetchAll(ctx context.Context, sql string, args ...any) ([]Row, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, rowToRow)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (t *PgxTx) FetchOne(ctx context.Context, sql string, args ...any) (Row, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	row, err := pgx.CollectOneRow(rows, rowToRow)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return row, err
}

func (t *PgxTx) FetchValue(ctx context.Context, sql string, args ...any) (any, error) {
	var v any
	err := t.tx.QueryRow(ctx, sql, args...).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func rowToRow(row pgx.CollectableRow) (Row, error) {
	m, err := pgx.RowToMap(row)
	return Row(m), err
}

// PgxResult implements Result for pgx command tags.
type PgxResult struct {
	cmdTag pgconn.CommandTag
}

// RowsAffected returns the number of rows affected by the command.
func (r *PgxResult) RowsAffected() int64 {
	return r.cmdTag.RowsAffected()
}

// String returns the command tag, e.g. "UPDATE 3".
func (r *PgxResult) String() string {
	return r.cmdTag.String()
}

var (
	_ Pool = (*PgxPool)(nil)
	_ Conn = (*PgxConn)(nil)
	_ Tx   = (*PgxTx)(nil)
)
