// Package query builds parameterised PostgreSQL SELECT statements.
//
// A Builder is immutable: every method returns a new Builder and leaves its
// receiver untouched, so a base query can be shared and refined along
// independent paths.
//
//	sql, params := query.New("posts").
//		Where("published", true).
//		WhereIn("category", "tech", "science").
//		OrderByDesc("created_at").
//		Paginate(2, 20).
//		Build()
//
// Conditions land in one of two buckets. Where and its variants append to the
// AND bucket, OrWhere and its variants to the OR bucket. When both buckets
// are populated the WHERE clause reads "(all AND conditions) OR (any OR
// condition)", which differs from left-to-right SQL precedence.
package query

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/Konsultn-Engineering/txscope/dialect"
)

// DefaultPerPage is the page size used by Page.
const DefaultPerPage = 10

type Builder struct {
	dialect dialect.Dialect
	table   string
	fields  []string
	aliases map[string]string
	ands    []string
	ors     []string
	params  []any
	groupBy []string
	having  []string
	orderBy []string
	limit   *int
	offset  *int
}

// New returns a Builder selecting every column of table.
func New(table string) *Builder {
	return NewWithDialect(table, dialect.NewPostgresDialect())
}

func NewWithDialect(table string, d dialect.Dialect) *Builder {
	return &Builder{
		dialect: d,
		table:   table,
		fields:  []string{"*"},
	}
}

func (b *Builder) clone() *Builder {
	c := *b
	c.fields = slices.Clone(b.fields)
	c.aliases = maps.Clone(b.aliases)
	c.ands = slices.Clone(b.ands)
	c.ors = slices.Clone(b.ors)
	c.params = slices.Clone(b.params)
	c.groupBy = slices.Clone(b.groupBy)
	c.having = slices.Clone(b.having)
	c.orderBy = slices.Clone(b.orderBy)
	return &c
}

// sub returns the tableless builder handed to group callbacks.
func (b *Builder) sub() *Builder {
	return NewWithDialect("", b.dialect)
}

// Table returns the table the builder selects from.
func (b *Builder) Table() string {
	return b.table
}

// Dialect returns the dialect used to render placeholders.
func (b *Builder) Dialect() dialect.Dialect {
	return b.dialect
}

// Params returns a copy of the bound parameters in placeholder order.
func (b *Builder) Params() []any {
	return slices.Clone(b.params)
}

// HasConditions reports whether any WHERE condition has been added.
func (b *Builder) HasConditions() bool {
	return len(b.ands) > 0 || len(b.ors) > 0
}

// WhereClause returns the combined WHERE condition without the WHERE keyword,
// together with the parameters it references.
func (b *Builder) WhereClause() (string, []any) {
	return combineConditions(b.ands, b.ors), slices.Clone(b.params)
}

// Select replaces the select list. Fields of the form "expr AS alias" register
// alias for later Having lookups. Selecting nothing restores "*".
func (b *Builder) Select(fields ...string) *Builder {
	c := b.clone()
	if len(fields) == 0 {
		c.fields = []string{"*"}
		c.aliases = nil
		return c
	}
	c.fields = slices.Clone(fields)
	c.aliases = make(map[string]string, len(fields))
	for _, f := range fields {
		if sel := parseSelectField(f); sel.alias != "" {
			c.aliases[sel.alias] = sel.expr
		}
	}
	return c
}

// GroupBy appends fields to the GROUP BY list.
func (b *Builder) GroupBy(fields ...string) *Builder {
	c := b.clone()
	c.groupBy = append(c.groupBy, fields...)
	return c
}

// Having adds a HAVING condition. It accepts (field, value) or
// (field, operator, value); field is resolved against the select aliases
// before being used literally.
func (b *Builder) Having(field string, args ...any) *Builder {
	op, value := splitConditionArgs("Having", args)
	expr := field
	if resolved, ok := b.aliases[field]; ok {
		expr = resolved
	}
	c := b.clone()
	c.having = append(c.having, c.bindCondition(expr, op, value))
	return c
}

// Limit sets the LIMIT clause. n must not be negative.
func (b *Builder) Limit(n int) *Builder {
	if n < 0 {
		panic(usage("Limit", "limit must be a non-negative integer, got %d", n))
	}
	c := b.clone()
	c.limit = &n
	return c
}

// Offset sets the OFFSET clause. n must not be negative.
func (b *Builder) Offset(n int) *Builder {
	if n < 0 {
		panic(usage("Offset", "offset must be a non-negative integer, got %d", n))
	}
	c := b.clone()
	c.offset = &n
	return c
}

// Paginate sets LIMIT perPage OFFSET (page-1)*perPage. Pages start at 1.
func (b *Builder) Paginate(page, perPage int) *Builder {
	if page < 1 {
		panic(usage("Paginate", "page must be >= 1, got %d", page))
	}
	if perPage < 1 {
		panic(usage("Paginate", "per page must be >= 1, got %d", perPage))
	}
	offset := (page - 1) * perPage
	c := b.clone()
	c.limit = &perPage
	c.offset = &offset
	return c
}

// Page paginates with DefaultPerPage rows per page.
func (b *Builder) Page(page int) *Builder {
	return b.Paginate(page, DefaultPerPage)
}

// Build renders the statement and returns it with a copy of its parameters.
func (b *Builder) Build() (string, []any) {
	var sb strings.Builder
	sb.Grow(64 + 16*len(b.ands) + 16*len(b.ors))

	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.fields, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	if where := combineConditions(b.ands, b.ors); where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBy, ", "))
	}
	if len(b.having) > 0 {
		sb.WriteString(" HAVING ")
		sb.WriteString(strings.Join(b.having, " AND "))
	}
	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*b.limit))
	}
	if b.offset != nil {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(*b.offset))
	}

	return sb.String(), slices.Clone(b.params)
}

// ToSQL returns only the statement text.
func (b *Builder) ToSQL() string {
	sql, _ := b.Build()
	return sql
}

// String renders the statement with its parameters inlined, for logs.
func (b *Builder) String() string {
	sql, params := b.Build()
	return dialect.Interpolate(b.dialect, sql, params)
}

// combineConditions joins the two buckets. Inside each bucket fragments are
// joined by AND or OR; a bucket with more than one fragment is parenthesised
// when the other bucket is also present.
func combineConditions(ands, ors []string) string {
	switch {
	case len(ands) == 0 && len(ors) == 0:
		return ""
	case len(ors) == 0:
		return strings.Join(ands, " AND ")
	case len(ands) == 0:
		return strings.Join(ors, " OR ")
	}

	andPart := strings.Join(ands, " AND ")
	if len(ands) > 1 {
		andPart = "(" + andPart + ")"
	}
	orPart := strings.Join(ors, " OR ")
	if len(ors) > 1 {
		orPart = "(" + orPart + ")"
	}
	return andPart + " OR " + orPart
}
