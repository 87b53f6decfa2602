package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/txscope/connector"
	"github.com/Konsultn-Engineering/txscope/database"
	"github.com/Konsultn-Engineering/txscope/database/dbtest"
	"github.com/Konsultn-Engineering/txscope/session"
)

const tablesSQL = "SELECT table_name, table_type FROM information_schema.tables WHERE table_schema = $1 ORDER BY table_name ASC LIMIT "

func newTestHandler(t *testing.T) (http.Handler, *dbtest.Pool) {
	t.Helper()
	pool := dbtest.NewPool()
	r := connector.NewRegistry()
	r.Register("main", pool)
	return New(session.NewManager(r), true).Routes(), pool
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthWithoutPingers(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestPoolsListsRegistry(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, "/pools")

	require.Equal(t, http.StatusOK, rec.Code)
	var out []poolInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "main", out[0].Name)
	assert.Zero(t, out[0].Stats.MaxOpen)
}

func TestTablesRunsTrackedTransaction(t *testing.T) {
	h, pool := newTestHandler(t)
	pool.Handle(func(sql string, args []any) dbtest.Response {
		return dbtest.Response{Rows: []database.Row{
			{"table_name": "posts", "table_type": "BASE TABLE"},
			{"table_name": "users", "table_type": "BASE TABLE"},
		}}
	})

	rec := get(t, h, "/pools/main/tables?schema=app&limit=10")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp tablesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "main", resp.Pool)
	require.Len(t, resp.Tables, 2)
	assert.Equal(t, "posts", resp.Tables[0]["table_name"])

	require.Len(t, resp.Queries, 1)
	assert.Equal(t, tablesSQL+"10", resp.Queries[0]["query"])
	require.Len(t, resp.Summary, 1)
	assert.Equal(t, 1, resp.Summary[0].Count)

	conns := pool.Conns()
	require.Len(t, conns, 1)
	assert.Equal(t, []string{"BEGIN", "COMMIT"}, conns[0].Events())
	stmts := conns[0].Statements()
	require.Len(t, stmts, 1)
	assert.Equal(t, []any{"app"}, stmts[0].Args)
	assert.Equal(t, 1, pool.Released())
}

func TestTablesDefaults(t *testing.T) {
	h, pool := newTestHandler(t)

	rec := get(t, h, "/pools/main/tables")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tables":[]`)
	stmts := pool.Conns()[0].Statements()
	require.Len(t, stmts, 1)
	assert.Equal(t, tablesSQL+"50", stmts[0].SQL)
	assert.Equal(t, []any{"public"}, stmts[0].Args)
}

func TestTablesClampsLimit(t *testing.T) {
	h, pool := newTestHandler(t)

	rec := get(t, h, "/pools/main/tables?limit=100000")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tablesSQL+"500", pool.Conns()[0].Statements()[0].SQL)
}

func TestTablesRejectsBadLimit(t *testing.T) {
	h, pool := newTestHandler(t)

	for _, raw := range []string{"zero", "0", "-3"} {
		rec := get(t, h, "/pools/main/tables?limit="+raw)
		assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
	}
	assert.Zero(t, pool.Acquired())
}

func TestTablesUnknownPool(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := get(t, h, "/pools/reporting/tables")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `database pool \"reporting\" not found`)
}

func TestTablesDriverFailureRollsBack(t *testing.T) {
	h, pool := newTestHandler(t)
	pool.Handle(func(string, []any) dbtest.Response {
		return dbtest.Response{Err: errors.New("relation missing")}
	})

	rec := get(t, h, "/pools/main/tables")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "relation missing")
	assert.Equal(t, []string{"BEGIN", "ROLLBACK"}, pool.Conns()[0].Events())
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	get(t, h, "/pools/main/tables")

	rec := get(t, h, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "txscope_transactions_total")
}

func TestMetricsCanBeDisabled(t *testing.T) {
	h := New(session.NewManager(connector.NewRegistry()), false).Routes()

	rec := get(t, h, "/metrics")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
