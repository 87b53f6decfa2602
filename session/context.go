package session

import (
	"context"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/Konsultn-Engineering/txscope/database"
)

type ctxKey struct{}

// connScope is one outermost transaction. Nested scopes share it.
type connScope struct {
	id     ulid.ULID
	pool   string
	tx     database.Tx
	closed atomic.Bool
}

// trackerScope binds a Tracker to the call chain that published it.
type trackerScope struct {
	tracker *Tracker
	closed  atomic.Bool
}

// ExecutionContext is the per call-chain state carried in a context.Context.
// Values are never mutated after publication; entering a scope derives a new
// context holding a new ExecutionContext.
type ExecutionContext struct {
	conn    *connScope
	tracker *trackerScope
}

// FromContext returns the ExecutionContext published in ctx, if any.
func FromContext(ctx context.Context) (*ExecutionContext, bool) {
	ec, ok := ctx.Value(ctxKey{}).(*ExecutionContext)
	return ec, ok && ec != nil
}

func withExecutionContext(ctx context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, ec)
}

// Connection returns the transaction of the live connection scope.
func (ec *ExecutionContext) Connection() (database.Tx, bool) {
	if ec == nil || ec.conn == nil || ec.conn.closed.Load() {
		return nil, false
	}
	return ec.conn.tx, true
}

// Tracker returns the tracker of the live tracking scope.
func (ec *ExecutionContext) Tracker() (*Tracker, bool) {
	if ec == nil || ec.tracker == nil || ec.tracker.closed.Load() {
		return nil, false
	}
	return ec.tracker.tracker, true
}

// ScopeID identifies the connection scope. It is empty outside one.
func (ec *ExecutionContext) ScopeID() string {
	if _, ok := ec.Connection(); !ok {
		return ""
	}
	return ec.conn.id.String()
}

// PoolName is the pool the connection scope was acquired from.
func (ec *ExecutionContext) PoolName() string {
	if _, ok := ec.Connection(); !ok {
		return ""
	}
	return ec.conn.pool
}

func (ec *ExecutionContext) liveConn() *connScope {
	if _, ok := ec.Connection(); !ok {
		return nil
	}
	return ec.conn
}

func (ec *ExecutionContext) liveTracker() *trackerScope {
	if _, ok := ec.Tracker(); !ok {
		return nil
	}
	return ec.tracker
}

// CurrentConnection returns the transaction bound to ctx.
func CurrentConnection(ctx context.Context) (database.Tx, bool) {
	ec, _ := FromContext(ctx)
	return ec.Connection()
}

// CurrentTracker returns the tracker bound to ctx.
func CurrentTracker(ctx context.Context) (*Tracker, bool) {
	ec, _ := FromContext(ctx)
	return ec.Tracker()
}
