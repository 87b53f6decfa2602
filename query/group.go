package query

// GroupFunc receives an empty, tableless builder and returns it with the
// group's conditions added. Returning nil or the untouched builder adds
// nothing.
type GroupFunc func(q *Builder) *Builder

// WhereGroup adds a parenthesised group of conditions to the AND bucket.
//
//	q.Where("user_id", id).WhereGroup(func(g *query.Builder) *query.Builder {
//		return g.Where("status", "draft").OrWhere("status", "pending")
//	})
//	// user_id = $1 AND (status = $2 OR status = $3)
func (b *Builder) WhereGroup(fn GroupFunc) *Builder {
	fragment, params, ok := b.mergeGroup(fn)
	if !ok {
		return b.clone()
	}
	c := b.clone()
	c.ands = append(c.ands, fragment)
	c.params = append(c.params, params...)
	return c
}

// OrWhereGroup adds a parenthesised group of conditions to the OR bucket.
func (b *Builder) OrWhereGroup(fn GroupFunc) *Builder {
	fragment, params, ok := b.mergeGroup(fn)
	if !ok {
		return b.clone()
	}
	c := b.clone()
	c.ors = append(c.ors, fragment)
	c.params = append(c.params, params...)
	return c
}

// mergeGroup runs fn against a fresh sub-builder and renders its conditions
// relative to b's parameter count. ok is false when fn added no condition.
func (b *Builder) mergeGroup(fn GroupFunc) (fragment string, params []any, ok bool) {
	g := b.sub()
	if res := fn(g); res != nil {
		g = res
	}
	if !g.HasConditions() {
		return "", nil, false
	}
	combined := combineConditions(g.ands, g.ors)
	shifted := shiftPlaceholders(b.dialect, combined, len(b.params), len(g.params))
	return "(" + shifted + ")", g.params, true
}
