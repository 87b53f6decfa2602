// Package repository provides generic CRUD access to a table on top of the
// query builder and the session statement helpers.
//
// Every operation must run inside session.Transaction; the repository never
// acquires connections itself.
//
//	users := repository.New[*User]("users", UserFromRow, repository.WithTimestamps())
//	err := session.Transaction(ctx, "main", func(ctx context.Context, _ database.Tx) error {
//		active, err := users.Where("active", true).OrderByDesc("created_at").Get(ctx)
//		...
//	})
package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Konsultn-Engineering/txscope/database"
	"github.com/Konsultn-Engineering/txscope/dberr"
	"github.com/Konsultn-Engineering/txscope/query"
	"github.com/Konsultn-Engineering/txscope/schema"
	"github.com/Konsultn-Engineering/txscope/session"
)

type trashedMode int

const (
	excludeTrashed trashedMode = iota
	includeTrashed
	onlyTrashed
)

// Repository reads and writes entities of type T. Like query.Builder it is
// immutable: the composition methods return refined copies.
type Repository[T schema.Entity] struct {
	table   string
	fromRow schema.RowMapper[T]
	cfg     *config
	q       *query.Builder
	trashed trashedMode
}

// New returns a repository over table. An empty table is derived from T with
// schema.TableNameOf.
func New[T schema.Entity](table string, fromRow schema.RowMapper[T], opts ...Option) *Repository[T] {
	if fromRow == nil {
		panic(dberr.Usage("repository.New", "a row mapper is required"))
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if table == "" {
		table = schema.TableNameOf[T]()
	}
	if cfg.schema != "" {
		table = cfg.schema + "." + table
	}
	return &Repository[T]{
		table:   table,
		fromRow: fromRow,
		cfg:     &cfg,
		q:       query.New(table),
	}
}

// Table returns the qualified table name.
func (r *Repository[T]) Table() string {
	return r.table
}

func (r *Repository[T]) with(q *query.Builder) *Repository[T] {
	c := *r
	c.q = q
	return &c
}

// fresh drops the accumulated conditions but keeps the trashed mode.
func (r *Repository[T]) fresh() *Repository[T] {
	return r.with(query.New(r.table))
}

// Query returns the builder with the soft delete filter applied, ready for
// inspection or custom execution.
func (r *Repository[T]) Query() *query.Builder {
	return r.scoped()
}

// ToSQL renders the read statement.
func (r *Repository[T]) ToSQL() string {
	return r.scoped().ToSQL()
}

func (r *Repository[T]) scoped() *query.Builder {
	if !r.cfg.softDelete {
		return r.q
	}
	switch r.trashed {
	case includeTrashed:
		return r.q
	case onlyTrashed:
		return r.q.Isolate().WhereNotNull(ColumnDeletedAt)
	default:
		return r.q.Isolate().WhereNull(ColumnDeletedAt)
	}
}

func (r *Repository[T]) Select(fields ...string) *Repository[T] {
	return r.with(r.q.Select(fields...))
}

func (r *Repository[T]) Where(field string, args ...any) *Repository[T] {
	return r.with(r.q.Where(field, args...))
}

func (r *Repository[T]) OrWhere(field string, args ...any) *Repository[T] {
	return r.with(r.q.OrWhere(field, args...))
}

func (r *Repository[T]) WhereAll(conds ...query.Condition) *Repository[T] {
	return r.with(r.q.WhereAll(conds...))
}

func (r *Repository[T]) OrWhereAll(conds ...query.Condition) *Repository[T] {
	return r.with(r.q.OrWhereAll(conds...))
}

func (r *Repository[T]) WhereIn(field string, values ...any) *Repository[T] {
	return r.with(r.q.WhereIn(field, values...))
}

func (r *Repository[T]) WhereNotIn(field string, values ...any) *Repository[T] {
	return r.with(r.q.WhereNotIn(field, values...))
}

func (r *Repository[T]) WhereNull(field string) *Repository[T] {
	return r.with(r.q.WhereNull(field))
}

func (r *Repository[T]) WhereNotNull(field string) *Repository[T] {
	return r.with(r.q.WhereNotNull(field))
}

func (r *Repository[T]) WhereBetween(field string, low, high any) *Repository[T] {
	return r.with(r.q.WhereBetween(field, low, high))
}

func (r *Repository[T]) WhereGroup(fn query.GroupFunc) *Repository[T] {
	return r.with(r.q.WhereGroup(fn))
}

func (r *Repository[T]) OrWhereGroup(fn query.GroupFunc) *Repository[T] {
	return r.with(r.q.OrWhereGroup(fn))
}

func (r *Repository[T]) OrderBy(clause string) *Repository[T] {
	return r.with(r.q.OrderBy(clause))
}

func (r *Repository[T]) OrderByAsc(field string) *Repository[T] {
	return r.with(r.q.OrderByAsc(field))
}

func (r *Repository[T]) OrderByDesc(field string) *Repository[T] {
	return r.with(r.q.OrderByDesc(field))
}

func (r *Repository[T]) GroupBy(fields ...string) *Repository[T] {
	return r.with(r.q.GroupBy(fields...))
}

func (r *Repository[T]) Having(field string, args ...any) *Repository[T] {
	return r.with(r.q.Having(field, args...))
}

func (r *Repository[T]) Limit(n int) *Repository[T] {
	return r.with(r.q.Limit(n))
}

func (r *Repository[T]) Offset(n int) *Repository[T] {
	return r.with(r.q.Offset(n))
}

func (r *Repository[T]) Paginate(page, perPage int) *Repository[T] {
	return r.with(r.q.Paginate(page, perPage))
}

// WithTrashed includes soft-deleted rows in reads.
func (r *Repository[T]) WithTrashed() *Repository[T] {
	c := r.with(r.q)
	c.trashed = includeTrashed
	return c
}

// OnlyTrashed restricts reads to soft-deleted rows.
func (r *Repository[T]) OnlyTrashed() *Repository[T] {
	c := r.with(r.q)
	c.trashed = onlyTrashed
	return c
}

// Get returns every matching entity.
func (r *Repository[T]) Get(ctx context.Context) ([]T, error) {
	rows, err := r.Rows(ctx)
	if err != nil {
		return nil, err
	}
	return r.mapRows(rows)
}

// Rows returns the matching rows unmapped, for queries selecting custom
// columns or aggregates.
func (r *Repository[T]) Rows(ctx context.Context) ([]database.Row, error) {
	sql, params := r.scoped().Build()
	return session.FetchAll(ctx, sql, params...)
}

// First returns the first matching entity. found is false when nothing
// matches.
func (r *Repository[T]) First(ctx context.Context) (entity T, found bool, err error) {
	sql, params := r.scoped().Limit(1).Build()
	row, err := session.FetchOne(ctx, sql, params...)
	if err != nil || row == nil {
		return entity, false, err
	}
	entity, err = r.mapRow(row)
	if err != nil {
		return entity, false, err
	}
	return entity, true, nil
}

// FindByID looks up a single entity by primary key. Accumulated conditions
// are ignored; the trashed mode applies.
func (r *Repository[T]) FindByID(ctx context.Context, id any) (T, bool, error) {
	return r.fresh().Where(r.cfg.idColumn, id).First(ctx)
}

// Count returns the number of matching rows. Ordering and paging are
// ignored.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	sql, params := r.scoped().WithoutPaging().Select("COUNT(*)").Build()
	v, err := session.FetchValue(ctx, sql, params...)
	if err != nil {
		return 0, err
	}
	return schema.Value[int64](database.Row{"count": v}, "count")
}

// Exists reports whether any row matches.
func (r *Repository[T]) Exists(ctx context.Context) (bool, error) {
	n, err := r.Count(ctx)
	return n > 0, err
}

// Create inserts e and returns the entity as stored, including generated ids
// and timestamps.
func (r *Repository[T]) Create(ctx context.Context, e T) (T, error) {
	var zero T
	fields, err := r.insertFields(e)
	if err != nil {
		return zero, err
	}

	placeholders := make([]string, len(fields))
	values := make([]any, len(fields))
	for i, f := range fields {
		placeholders[i] = r.q.Dialect().Placeholder(i + 1)
		values[i] = f.Value
	}
	sql := "INSERT INTO " + r.table +
		" (" + strings.Join(schema.Columns(fields), ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"

	if _, err := session.Exec(ctx, sql, values...); err != nil {
		return zero, err
	}
	return r.mapRow(schema.RowOf(fields))
}

// CreateMany inserts entities with a single multi-row INSERT. Every entity
// must produce the same columns in the same order.
func (r *Repository[T]) CreateMany(ctx context.Context, entities []T) ([]T, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	all := make([][]schema.Field, len(entities))
	for i, e := range entities {
		fields, err := r.insertFields(e)
		if err != nil {
			return nil, err
		}
		all[i] = fields
	}
	columns := schema.Columns(all[0])

	rows := make([]string, len(all))
	values := make([]any, 0, len(all)*len(columns))
	for i, fields := range all {
		if !slices.Equal(columns, schema.Columns(fields)) {
			return nil, dberr.Usage("repository.CreateMany", "entity %d has columns %v, want %v", i, schema.Columns(fields), columns)
		}
		placeholders := make([]string, len(fields))
		for j, f := range fields {
			values = append(values, f.Value)
			placeholders[j] = r.q.Dialect().Placeholder(len(values))
		}
		rows[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	sql := "INSERT INTO " + r.table + " (" + strings.Join(columns, ", ") + ") VALUES " + strings.Join(rows, ", ")
	if _, err := session.Exec(ctx, sql, values...); err != nil {
		return nil, err
	}

	out := make([]T, len(all))
	for i, fields := range all {
		e, err := r.mapRow(schema.RowOf(fields))
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// Update applies changes to the row with id and returns it re-read. found
// is false when no row has id. Empty changes only re-read.
func (r *Repository[T]) Update(ctx context.Context, id any, changes map[string]any) (T, bool, error) {
	set := r.updateFields(changes)
	if len(set) == 0 {
		return r.FindByID(ctx, id)
	}

	params := []any{id}
	assignments := make([]string, len(set))
	for i, f := range set {
		params = append(params, f.Value)
		assignments[i] = f.Name + " = " + r.q.Dialect().Placeholder(len(params))
	}
	sql := "UPDATE " + r.table + " SET " + strings.Join(assignments, ", ") +
		" WHERE " + r.cfg.idColumn + " = " + r.q.Dialect().Placeholder(1)

	if _, err := session.Exec(ctx, sql, params...); err != nil {
		var zero T
		return zero, false, err
	}
	return r.WithTrashed().FindByID(ctx, id)
}

// UpdateWhere applies changes to every matching row and returns the number
// of rows affected. It refuses to run without conditions.
func (r *Repository[T]) UpdateWhere(ctx context.Context, changes map[string]any) (int64, error) {
	if !r.q.HasConditions() {
		return 0, dberr.Usage("repository.UpdateWhere", "refusing to update %s without WHERE conditions", r.table)
	}
	set := r.updateFields(changes)
	if len(set) == 0 {
		return 0, nil
	}

	params := make([]any, 0, len(set))
	assignments := make([]string, len(set))
	for i, f := range set {
		params = append(params, f.Value)
		assignments[i] = f.Name + " = " + r.q.Dialect().Placeholder(len(params))
	}
	where, whereParams := r.scoped().WhereClauseFrom(len(params))
	sql := "UPDATE " + r.table + " SET " + strings.Join(assignments, ", ") + " WHERE " + where

	res, err := session.Exec(ctx, sql, append(params, whereParams...)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

// Delete removes the row with id, or marks it deleted when soft delete is
// enabled. It reports whether a row was affected.
func (r *Repository[T]) Delete(ctx context.Context, id any) (bool, error) {
	if !r.cfg.softDelete {
		return r.ForceDelete(ctx, id)
	}
	sql := "UPDATE " + r.table + " SET " + ColumnDeletedAt + " = $2 WHERE " + r.cfg.idColumn + " = $1"
	res, err := session.Exec(ctx, sql, id, r.cfg.now().UTC())
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// DeleteWhere deletes, or soft deletes, every matching row and returns the
// number affected. It refuses to run without conditions.
func (r *Repository[T]) DeleteWhere(ctx context.Context) (int64, error) {
	if !r.q.HasConditions() {
		return 0, dberr.Usage("repository.DeleteWhere", "refusing to delete from %s without WHERE conditions", r.table)
	}

	var (
		sql    string
		params []any
	)
	if r.cfg.softDelete {
		where, whereParams := r.scoped().WhereClauseFrom(1)
		sql = "UPDATE " + r.table + " SET " + ColumnDeletedAt + " = $1 WHERE " + where
		params = append([]any{r.cfg.now().UTC()}, whereParams...)
	} else {
		var where string
		where, params = r.scoped().WhereClause()
		sql = "DELETE FROM " + r.table + " WHERE " + where
	}

	res, err := session.Exec(ctx, sql, params...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

// DeleteMany deletes, or soft deletes, the rows with the given ids.
func (r *Repository[T]) DeleteMany(ctx context.Context, ids ...any) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.fresh().WhereIn(r.cfg.idColumn, ids...).DeleteWhere(ctx)
}

// ForceDelete removes the row with id regardless of soft delete.
func (r *Repository[T]) ForceDelete(ctx context.Context, id any) (bool, error) {
	sql := "DELETE FROM " + r.table + " WHERE " + r.cfg.idColumn + " = $1"
	res, err := session.Exec(ctx, sql, id)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// Restore clears deleted_at on the row with id and returns it. found is
// false when no row has id.
func (r *Repository[T]) Restore(ctx context.Context, id any) (T, bool, error) {
	var zero T
	if !r.cfg.softDelete {
		return zero, false, dberr.Usage("repository.Restore", "soft delete is not enabled for %s", r.table)
	}
	sql := "UPDATE " + r.table + " SET " + ColumnDeletedAt + " = NULL WHERE " + r.cfg.idColumn + " = $1"
	res, err := session.Exec(ctx, sql, id)
	if err != nil {
		return zero, false, err
	}
	if res.RowsAffected() == 0 {
		return zero, false, nil
	}
	return r.WithTrashed().FindByID(ctx, id)
}

func (r *Repository[T]) mapRow(row database.Row) (T, error) {
	e, err := r.fromRow(row)
	if err != nil {
		return e, fmt.Errorf("map %s row: %w", r.table, err)
	}
	return e, nil
}

func (r *Repository[T]) mapRows(rows []database.Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		e, err := r.mapRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
