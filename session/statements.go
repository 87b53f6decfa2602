package session

import (
	"context"
	"runtime"
	"strconv"
	"strings"

	"github.com/Konsultn-Engineering/txscope/database"
	"github.com/Konsultn-Engineering/txscope/dberr"
	"github.com/Konsultn-Engineering/txscope/dialect"
	"github.com/Konsultn-Engineering/txscope/logging"
	"github.com/Konsultn-Engineering/txscope/metrics"
)

// ErrNoActiveTransaction is returned by the statement helpers when ctx does
// not carry a live connection scope.
var ErrNoActiveTransaction = &dberr.UsageError{
	Op:     "session",
	Reason: "no active transaction in context; call Transaction first",
}

const maxStackDepth = 32

// logDialect renders tracked statements in debug lines.
var logDialect = dialect.NewPostgresDialect()

// LogStatement records sql and params on the tracker bound to ctx. It does
// nothing unless an enabled tracker is active.
func LogStatement(ctx context.Context, sql string, params []any) {
	t, ok := CurrentTracker(ctx)
	if !ok || !t.IsEnabled() {
		return
	}
	if !t.Record(sql, params, callerStack(2)) {
		return
	}
	metrics.TrackedStatementsTotal.Inc()

	if e := logging.Ctx(ctx).Debug(); e.Enabled() {
		ec, _ := FromContext(ctx)
		e.Str("scope_id", ec.ScopeID()).
			Str("sql", dialect.Interpolate(logDialect, sql, params)).
			Msg("statement tracked")
	}
}

// callerStack formats the frames above skip, innermost first, as
// "function file:line".
func callerStack(skip int) []string {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var out []string
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			out = append(out, f.Function+" "+f.File+":"+strconv.Itoa(f.Line))
		}
		if !more {
			break
		}
	}
	return out
}

func activeTx(ctx context.Context) (database.Tx, error) {
	tx, ok := CurrentConnection(ctx)
	if !ok {
		return nil, ErrNoActiveTransaction
	}
	return tx, nil
}

// Exec runs a statement that returns no rows.
func Exec(ctx context.Context, sql string, params ...any) (database.Result, error) {
	tx, err := activeTx(ctx)
	if err != nil {
		return nil, err
	}
	LogStatement(ctx, sql, params)
	res, err := tx.Exec(ctx, sql, params...)
	metrics.RecordStatement("exec", err)
	return res, err
}

// FetchAll returns every row of the result. No rows is a nil slice.
func FetchAll(ctx context.Context, sql string, params ...any) ([]database.Row, error) {
	tx, err := activeTx(ctx)
	if err != nil {
		return nil, err
	}
	LogStatement(ctx, sql, params)
	rows, err := tx.FetchAll(ctx, sql, params...)
	metrics.RecordStatement("fetch_all", err)
	return rows, err
}

// FetchOne returns the first row, or nil without error when there is none.
func FetchOne(ctx context.Context, sql string, params ...any) (database.Row, error) {
	tx, err := activeTx(ctx)
	if err != nil {
		return nil, err
	}
	LogStatement(ctx, sql, params)
	row, err := tx.FetchOne(ctx, sql, params...)
	metrics.RecordStatement("fetch_one", err)
	return row, err
}

// FetchValue returns the first column of the first row, or nil when there is
// no row.
func FetchValue(ctx context.Context, sql string, params ...any) (any, error) {
	tx, err := activeTx(ctx)
	if err != nil {
		return nil, err
	}
	LogStatement(ctx, sql, params)
	v, err := tx.FetchValue(ctx, sql, params...)
	metrics.RecordStatement("fetch_value", err)
	return v, err
}
