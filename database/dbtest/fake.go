// Package dbtest provides in-memory implementations of the database
// contracts for tests that must observe connection and transaction traffic
// without a server.
package dbtest

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/Konsultn-Engineering/txscope/database"
)

// ErrTxDone is returned by a Tx used after Commit or Rollback.
var ErrTxDone = errors.New("dbtest: transaction already finished")

// Statement is one statement observed by a fake connection.
type Statement struct {
	SQL  string
	Args []any
}

// Response is what a Handler returns for a statement.
type Response struct {
	Rows         []database.Row
	RowsAffected int64
	Err          error
}

// Handler scripts the reply to each statement.
type Handler func(sql string, args []any) Response

// Pool is a database.Pool that records every acquire and release.
type Pool struct {
	mu       sync.Mutex
	handler  Handler
	conns    []*Conn
	acquired int
	released int
	sem      chan struct{}

	AcquireErr error
	BeginErr   error
	CommitErr  error
}

// NewPool returns an unbounded pool answering every statement with an empty
// response.
func NewPool() *Pool {
	return &Pool{handler: func(string, []any) Response { return Response{} }}
}

// WithCapacity bounds the number of outstanding connections. Acquire blocks
// until a connection is released or ctx is done.
func (p *Pool) WithCapacity(n int) *Pool {
	p.sem = make(chan struct{}, n)
	return p
}

// Handle replaces the statement handler.
func (p *Pool) Handle(h Handler) *Pool {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
	return p
}

func (p *Pool) Acquire(ctx context.Context) (database.Conn, error) {
	if p.AcquireErr != nil {
		return nil, p.AcquireErr
	}
	if p.sem != nil {
		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquired++
	c := &Conn{pool: p, id: len(p.conns) + 1}
	p.conns = append(p.conns, c)
	return c, nil
}

func (p *Pool) Release(conn database.Conn) {
	c := conn.(*Conn)

	p.mu.Lock()
	p.released++
	c.releases++
	p.mu.Unlock()

	if p.sem != nil {
		<-p.sem
	}
}

// Acquired returns how many connections have been handed out.
func (p *Pool) Acquired() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired
}

// Released returns how many Release calls have been made.
func (p *Pool) Released() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// Conns returns every connection handed out, in acquisition order.
func (p *Pool) Conns() []*Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Conn(nil), p.conns...)
}

func (p *Pool) respond(sql string, args []any) Response {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	return h(sql, args)
}

// Conn is a fake pooled connection. It logs transaction control as Events
// and everything else as Statements.
type Conn struct {
	pool       *Pool
	id         int
	mu         sync.Mutex
	events     []string
	statements []Statement
	savepoints int
	releases   int
}

func (c *Conn) ID() int {
	return c.id
}

// Releases returns how often the connection was released.
func (c *Conn) Releases() int {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	return c.releases
}

// Events returns transaction control statements such as BEGIN or
// ROLLBACK TO SAVEPOINT sp_1.
func (c *Conn) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

// Statements returns the statements executed on this connection.
func (c *Conn) Statements() []Statement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Statement(nil), c.statements...)
}

func (c *Conn) event(e string) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *Conn) Begin(ctx context.Context) (database.Tx, error) {
	if c.pool.BeginErr != nil {
		return nil, c.pool.BeginErr
	}
	c.event("BEGIN")
	return &Tx{conn: c}, nil
}

// Tx is a fake transaction or savepoint.
type Tx struct {
	conn      *Conn
	savepoint string
	done      bool
}

func (t *Tx) Begin(ctx context.Context) (database.Tx, error) {
	if t.done {
		return nil, ErrTxDone
	}
	t.conn.mu.Lock()
	t.conn.savepoints++
	name := "sp_" + strconv.Itoa(t.conn.savepoints)
	t.conn.mu.Unlock()

	t.conn.event("SAVEPOINT " + name)
	return &Tx{conn: t.conn, savepoint: name}, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if t.savepoint != "" {
		t.conn.event("RELEASE SAVEPOINT " + t.savepoint)
		return nil
	}
	if err := t.conn.pool.CommitErr; err != nil {
		t.conn.event("COMMIT FAILED")
		return err
	}
	t.conn.event("COMMIT")
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if t.savepoint != "" {
		t.conn.event("ROLLBACK TO SAVEPOINT " + t.savepoint)
		return nil
	}
	t.conn.event("ROLLBACK")
	return nil
}

func (t *Tx) run(sql string, args []any) Response {
	t.conn.mu.Lock()
	t.conn.statements = append(t.conn.statements, Statement{SQL: sql, Args: append([]any(nil), args...)})
	t.conn.mu.Unlock()
	return t.conn.pool.respond(sql, args)
}

func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (database.Result, error) {
	if t.done {
		return nil, ErrTxDone
	}
	res := t.run(sql, args)
	if res.Err != nil {
		return nil, res.Err
	}
	return Result(res.RowsAffected), nil
}

func (t *Tx) FetchAll(ctx context.Context, sql string, args ...any) ([]database.Row, error) {
	if t.done {
		return nil, ErrTxDone
	}
	res := t.run(sql, args)
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Rows, nil
}

func (t *Tx) FetchOne(ctx context.Context, sql string, args ...any) (database.Row, error) {
	rows, err := t.FetchAll(ctx, sql, args...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// FetchValue returns the value of the lone column of the first row. Rows
// with several columns must script a single value.
func (t *Tx) FetchValue(ctx context.Context, sql string, args ...any) (any, error) {
	row, err := t.FetchOne(ctx, sql, args...)
	if err != nil || row == nil {
		return nil, err
	}
	for _, v := range row {
		return v, nil
	}
	return nil, nil
}

// Result is a fixed rows-affected count.
type Result int64

func (r Result) RowsAffected() int64 {
	return int64(r)
}

func (r Result) String() string {
	return "rows affected " + strconv.FormatInt(int64(r), 10)
}

var (
	_ database.Pool = (*Pool)(nil)
	_ database.Conn = (*Conn)(nil)
	_ database.Tx   = (*Tx)(nil)
)
