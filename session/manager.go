// Package session binds pooled connections and query trackers to a
// context.Context call chain.
//
// An outermost Transaction acquires a connection, begins a transaction and
// publishes both in a derived context. Transaction calls made with that
// context open savepoints on the same connection instead of acquiring a new
// one. The connection is released exactly once when the outermost scope
// exits, whether fn returns, fails or panics.
package session

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/Konsultn-Engineering/txscope/connector"
	"github.com/Konsultn-Engineering/txscope/database"
	"github.com/Konsultn-Engineering/txscope/logging"
	"github.com/Konsultn-Engineering/txscope/metrics"
)

// TxFunc runs inside a transaction scope. ctx carries the scope; pass it to
// every statement helper and nested Transaction.
type TxFunc func(ctx context.Context, tx database.Tx) error

type options struct {
	trackQueries bool
}

// Option configures a single Transaction call.
type Option func(*options)

// WithQueryTracking publishes an enabled Tracker for the scope unless one is
// already active.
func WithQueryTracking() Option {
	return func(o *options) {
		o.trackQueries = true
	}
}

// Manager opens transaction scopes on pools resolved from a registry.
type Manager struct {
	registry *connector.Registry
}

// NewManager returns a manager over r. A nil r means the default registry.
func NewManager(r *connector.Registry) *Manager {
	if r == nil {
		r = connector.DefaultRegistry()
	}
	return &Manager{registry: r}
}

// Registry returns the registry pools are resolved from.
func (m *Manager) Registry() *connector.Registry {
	return m.registry
}

// Transaction runs fn in a transaction on poolName.
//
// If ctx already carries a live connection, poolName is not consulted: fn
// runs inside a savepoint on that connection and an error or panic rolls back
// to it. Otherwise a connection is acquired from poolName, which must be
// registered. fn's error is returned after rollback; a panic is re-raised
// after rollback.
func (m *Manager) Transaction(ctx context.Context, poolName string, fn TxFunc, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	parent, _ := FromContext(ctx)
	if scope := parent.liveConn(); scope != nil {
		return m.nested(ctx, parent, scope, poolName, fn, o)
	}
	return m.outermost(ctx, parent, poolName, fn, o)
}

func (m *Manager) outermost(ctx context.Context, parent *ExecutionContext, poolName string, fn TxFunc, o options) (err error) {
	pool, err := m.registry.Pool(poolName)
	if err != nil {
		return err
	}

	acquireStart := time.Now()
	conn, err := pool.Acquire(ctx)
	metrics.RecordAcquire(poolName, time.Since(acquireStart))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("pool", poolName).Msg("acquire connection failed")
		return err
	}
	defer pool.Release(conn)

	start := time.Now()
	cleanupCtx := context.WithoutCancel(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		metrics.RecordTransaction(poolName, metrics.OutcomeFailed, time.Since(start))
		return err
	}

	scope := &connScope{id: ulid.Make(), pool: poolName, tx: tx}
	ec := &ExecutionContext{conn: scope, tracker: parent.liveTracker()}
	var owned *trackerScope
	if o.trackQueries && ec.tracker == nil {
		owned = &trackerScope{tracker: NewTracker()}
		ec.tracker = owned
	}
	defer func() {
		scope.closed.Store(true)
		if owned != nil {
			owned.closed.Store(true)
		}
	}()

	log := logging.Ctx(ctx).With().Str("scope_id", scope.id.String()).Str("pool", poolName).Logger()
	log.Debug().Msg("transaction started")

	defer func() {
		if r := recover(); r != nil {
			rollback(cleanupCtx, &log, tx)
			metrics.RecordTransaction(poolName, metrics.OutcomePanic, time.Since(start))
			log.Error().Interface("panic", r).Msg("transaction rolled back after panic")
			panic(r)
		}
	}()

	if err = fn(withExecutionContext(ctx, ec), tx); err != nil {
		rollback(cleanupCtx, &log, tx)
		metrics.RecordTransaction(poolName, metrics.OutcomeRollback, time.Since(start))
		log.Debug().Err(err).Msg("transaction rolled back")
		return err
	}

	if err = ctx.Err(); err != nil {
		rollback(cleanupCtx, &log, tx)
		metrics.RecordTransaction(poolName, metrics.OutcomeRollback, time.Since(start))
		log.Debug().Err(err).Msg("transaction rolled back after cancellation")
		return err
	}

	if err = tx.Commit(cleanupCtx); err != nil {
		metrics.RecordTransaction(poolName, metrics.OutcomeFailed, time.Since(start))
		log.Warn().Err(err).Msg("commit failed")
		return err
	}
	metrics.RecordTransaction(poolName, metrics.OutcomeCommit, time.Since(start))
	log.Debug().Dur("duration", time.Since(start)).Msg("transaction committed")
	return nil
}

func (m *Manager) nested(ctx context.Context, parent *ExecutionContext, scope *connScope, poolName string, fn TxFunc, o options) (err error) {
	log := logging.Ctx(ctx).With().Str("scope_id", scope.id.String()).Str("pool", scope.pool).Logger()
	if poolName != scope.pool {
		log.Debug().Str("requested_pool", poolName).Msg("nested transaction reuses the active connection")
	}

	sp, err := scope.tx.Begin(ctx)
	if err != nil {
		return err
	}
	metrics.NestedTransactionsTotal.WithLabelValues(scope.pool).Inc()
	cleanupCtx := context.WithoutCancel(ctx)

	innerCtx := ctx
	if o.trackQueries && parent.liveTracker() == nil {
		owned := &trackerScope{tracker: NewTracker()}
		defer owned.closed.Store(true)
		innerCtx = withExecutionContext(ctx, &ExecutionContext{conn: scope, tracker: owned})
	}

	defer func() {
		if r := recover(); r != nil {
			rollback(cleanupCtx, &log, sp)
			panic(r)
		}
	}()

	if err = fn(innerCtx, scope.tx); err != nil {
		rollback(cleanupCtx, &log, sp)
		log.Debug().Err(err).Msg("rolled back to savepoint")
		return err
	}
	return sp.Commit(cleanupCtx)
}

func rollback(ctx context.Context, log *zerolog.Logger, tx database.Tx) {
	if err := tx.Rollback(ctx); err != nil {
		log.Warn().Err(err).Msg("rollback failed")
	}
}

// Wrap returns fn bound to a transaction on poolName.
func (m *Manager) Wrap(poolName string, fn TxFunc, opts ...Option) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return m.Transaction(ctx, poolName, fn, opts...)
	}
}

// Transactional is Wrap for functions that produce a value. The zero value
// is returned when the transaction fails.
func Transactional[T any](m *Manager, poolName string, fn func(ctx context.Context, tx database.Tx) (T, error), opts ...Option) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var out T
		err := m.Transaction(ctx, poolName, func(ctx context.Context, tx database.Tx) error {
			v, err := fn(ctx, tx)
			if err != nil {
				return err
			}
			out = v
			return nil
		}, opts...)
		if err != nil {
			var zero T
			return zero, err
		}
		return out, nil
	}
}

// TrackQueries runs fn with a tracker bound to ctx.
//
// An already active tracker is yielded, enabled for the duration of fn and
// then restored to its previous state. Otherwise a new tracker is published
// for fn and unbound when fn returns; the caller keeps the returned entries.
func (m *Manager) TrackQueries(ctx context.Context, fn func(ctx context.Context, t *Tracker) error) error {
	parent, _ := FromContext(ctx)
	if ts := parent.liveTracker(); ts != nil {
		prev := ts.tracker.setEnabled(true)
		defer ts.tracker.setEnabled(prev)
		return fn(ctx, ts.tracker)
	}

	ts := &trackerScope{tracker: NewTracker()}
	defer ts.closed.Store(true)
	ec := &ExecutionContext{conn: parent.liveConn(), tracker: ts}
	return fn(withExecutionContext(ctx, ec), ts.tracker)
}

var defaultManager = NewManager(nil)

// DefaultManager returns the manager over connector.DefaultRegistry.
func DefaultManager() *Manager {
	return defaultManager
}

// Transaction runs fn on the default manager.
func Transaction(ctx context.Context, poolName string, fn TxFunc, opts ...Option) error {
	return defaultManager.Transaction(ctx, poolName, fn, opts...)
}

// Wrap binds fn to a transaction on the default manager.
func Wrap(poolName string, fn TxFunc, opts ...Option) func(ctx context.Context) error {
	return defaultManager.Wrap(poolName, fn, opts...)
}

// TrackQueries runs fn with a tracker on the default manager.
func TrackQueries(ctx context.Context, fn func(ctx context.Context, t *Tracker) error) error {
	return defaultManager.TrackQueries(ctx, fn)
}
