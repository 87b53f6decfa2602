package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"sync/atomic"
)

// SQLPool implements Pool for *sql.DB. Any driver works as long as it
// understands SAVEPOINT, which nested transactions rely on.
type SQLPool struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// NewSQLPool wraps db. opts may be nil for driver defaults.
func NewSQLPool(db *sql.DB, opts *sql.TxOptions) *SQLPool {
	return &SQLPool{db: db, opts: opts}
}

func (p *SQLPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &SQLConn{conn: conn, opts: p.opts}, nil
}

// Release closes the dedicated connection, returning it to db's pool.
func (p *SQLPool) Release(conn Conn) {
	c, ok := conn.(*SQLConn)
	if !ok || c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
}

// DB returns the wrapped handle.
func (p *SQLPool) DB() *sql.DB {
	return p.db
}

// SQLConn implements Conn for *sql.Conn.
type SQLConn struct {
	conn *sql.Conn
	opts *sql.TxOptions
}

func (c *SQLConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.conn.BeginTx(ctx, c.opts)
	if err != nil {
		return nil, err
	}
	return &SQLTx{tx: tx, seq: new(atomic.Int64)}, nil
}

// SQLTx implements Tx for *sql.Tx. A non-empty savepoint marks a nested
// scope opened with Begin.
type SQLTx struct {
	tx        *sql.Tx
	savepoint string
	seq       *atomic.Int64
}

func (t *SQLTx) Begin(ctx context.Context) (Tx, error) {
	name := "sp_" + strconv.FormatInt(t.seq.Add(1), 10)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, err
	}
	return &SQLTx{tx: t.tx, savepoint: name, seq: t.seq}, nil
}

func (t *SQLTx) Commit(ctx context.Context) error {
	if t.savepoint == "" {
		return t.tx.Commit()
	}
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+t.savepoint)
	return err
}

func (t *SQLTx) Rollback(ctx context.Context) error {
	if t.savepoint == "" {
		return t.tx.Rollback()
	}
	_, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+t.savepoint)
	return err
}

func (t *SQLTx) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		n = -1
	}
	return &SQLResult{rows: n}, nil
}

func (t *SQLTx) FetchAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows, 0)
}

func (t *SQLTx) FetchOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, err := scanRows(rows, 1)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

func (t *SQLTx) FetchValue(ctx context.Context, query string, args ...any) (any, error) {
	var v any
	err := t.tx.QueryRowContext(ctx, query, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	return v, nil
}

// scanRows reads at most limit rows, or all of them when limit is 0.
// Driver-owned []byte values are copied into strings.
func scanRows(rows *sql.Rows, limit int) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)

		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, rows.Err()
}

// SQLResult implements Result for database/sql results.
type SQLResult struct {
	rows int64
}

func (r *SQLResult) RowsAffected() int64 {
	return r.rows
}

func (r *SQLResult) String() string {
	return "rows affected " + strconv.FormatInt(r.rows, 10)
}

var (
	_ Pool = (*SQLPool)(nil)
	_ Conn = (*SQLConn)(nil)
	_ Tx   = (*SQLTx)(nil)
)
