package query

import "slices"

// Isolate folds the current WHERE conditions into a single parenthesised AND
// fragment so that conditions added afterwards constrain the whole
// expression. A builder without OR conditions is returned unchanged.
//
//	q.Where("a", 1).OrWhere("b", 2).Isolate().WhereNull("deleted_at")
//	// (a = $1 OR b = $2) AND deleted_at IS NULL
func (b *Builder) Isolate() *Builder {
	c := b.clone()
	if len(b.ors) == 0 {
		return c
	}
	c.ands = []string{"(" + combineConditions(b.ands, b.ors) + ")"}
	c.ors = nil
	return c
}

// WhereClauseFrom is WhereClause with every placeholder renumbered to follow
// offset parameters bound elsewhere in the statement, as in
// "UPDATE t SET a = $1 WHERE id = $2".
func (b *Builder) WhereClauseFrom(offset int) (string, []any) {
	where := combineConditions(b.ands, b.ors)
	if offset > 0 {
		where = shiftPlaceholders(b.dialect, where, offset, len(b.params))
	}
	return where, slices.Clone(b.params)
}

// WithoutPaging drops ORDER BY, LIMIT and OFFSET and keeps everything else,
// for aggregates over the rows a listing query would page through.
func (b *Builder) WithoutPaging() *Builder {
	c := b.clone()
	c.orderBy = nil
	c.limit = nil
	c.offset = nil
	return c
}
