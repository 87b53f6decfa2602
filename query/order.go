package query

import "strings"

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// OrderBy appends an ORDER BY key. A clause that already ends with ASC or
// DESC, such as "views DESC, created_at ASC", is used as written; anything
// else sorts ascending. Repeated calls accumulate.
func (b *Builder) OrderBy(clause string) *Builder {
	if hasDirection(clause) {
		c := b.clone()
		c.orderBy = append(c.orderBy, strings.TrimSpace(clause))
		return c
	}
	return b.order(clause, Asc)
}

func (b *Builder) OrderByAsc(field string) *Builder {
	return b.order(field, Asc)
}

func (b *Builder) OrderByDesc(field string) *Builder {
	return b.order(field, Desc)
}

// OrderByDirection appends field sorted by dir.
func (b *Builder) OrderByDirection(field string, dir Direction) *Builder {
	return b.order(field, dir)
}

func (b *Builder) order(field string, dir Direction) *Builder {
	c := b.clone()
	c.orderBy = append(c.orderBy, strings.TrimSpace(field)+" "+string(dir))
	return c
}

func hasDirection(clause string) bool {
	upper := strings.ToUpper(strings.TrimSpace(clause))
	return strings.HasSuffix(upper, " ASC") || strings.HasSuffix(upper, " DESC")
}
