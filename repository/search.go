package repository

import (
	"context"
	"strings"

	"github.com/Konsultn-Engineering/txscope/query"
	"github.com/Konsultn-Engineering/txscope/schema"
	"github.com/Konsultn-Engineering/txscope/session"
)

// SortKey orders results by Field. An empty Direction sorts ascending.
type SortKey struct {
	Field     string
	Direction query.Direction
}

// Search adds an equality condition for every criterion with a non-nil
// value, in the order given. Nil criteria are unset filters and skipped.
func (r *Repository[T]) Search(criteria ...schema.Field) *Repository[T] {
	q := r.q
	for _, c := range criteria {
		if c.Value == nil {
			continue
		}
		q = q.Where(c.Name, c.Value)
	}
	return r.with(q)
}

// Sort appends ORDER BY keys. A direction other than DESC, compared without
// regard to case, sorts ascending.
func (r *Repository[T]) Sort(keys ...SortKey) *Repository[T] {
	q := r.q
	for _, k := range keys {
		if k.Field == "" {
			continue
		}
		if strings.EqualFold(string(k.Direction), string(query.Desc)) {
			q = q.OrderByDesc(k.Field)
		} else {
			q = q.OrderByAsc(k.Field)
		}
	}
	return r.with(q)
}

// UpdateMany applies the same changes to every row in ids and returns the
// updated rows as the database reports them. No ids or no changes is a
// no-op.
func (r *Repository[T]) UpdateMany(ctx context.Context, ids []any, changes map[string]any) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	set := r.updateFields(changes)
	if len(set) == 0 {
		return nil, nil
	}

	d := r.q.Dialect()
	params := make([]any, 0, len(set)+len(ids))
	assignments := make([]string, len(set))
	for i, f := range set {
		params = append(params, f.Value)
		assignments[i] = f.Name + " = " + d.Placeholder(len(params))
	}
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		params = append(params, id)
		placeholders[i] = d.Placeholder(len(params))
	}

	sql := "UPDATE " + r.table + " SET " + strings.Join(assignments, ", ") +
		" WHERE " + r.cfg.idColumn + " IN (" + strings.Join(placeholders, ", ") + ") RETURNING *"
	rows, err := session.FetchAll(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	return r.mapRows(rows)
}
