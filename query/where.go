package query

import (
	"reflect"
	"strings"

	"github.com/Konsultn-Engineering/txscope/dberr"
	"github.com/Konsultn-Engineering/txscope/dialect"
)

// Where adds an AND condition. It accepts (field, value) for equality or
// (field, operator, value). A nil value compared with "=" renders IS NULL and
// with "!=" or "<>" renders IS NOT NULL; neither binds a parameter.
//
// Any other argument shape panics with a *dberr.UsageError.
func (b *Builder) Where(field string, args ...any) *Builder {
	op, value := splitConditionArgs("Where", args)
	c := b.clone()
	c.ands = append(c.ands, c.bindCondition(field, op, value))
	return c
}

// OrWhere is Where for the OR bucket.
func (b *Builder) OrWhere(field string, args ...any) *Builder {
	op, value := splitConditionArgs("OrWhere", args)
	c := b.clone()
	c.ors = append(c.ors, c.bindCondition(field, op, value))
	return c
}

func (b *Builder) WhereNull(field string) *Builder {
	return b.Where(field, "=", nil)
}

func (b *Builder) WhereNotNull(field string) *Builder {
	return b.Where(field, "!=", nil)
}

func (b *Builder) OrWhereNull(field string) *Builder {
	return b.OrWhere(field, "=", nil)
}

func (b *Builder) OrWhereNotNull(field string) *Builder {
	return b.OrWhere(field, "!=", nil)
}

// WhereBetween adds "field BETWEEN $n AND $n+1".
func (b *Builder) WhereBetween(field string, low, high any) *Builder {
	c := b.clone()
	c.ands = append(c.ands, c.bindBetween(field, low, high))
	return c
}

func (b *Builder) OrWhereBetween(field string, low, high any) *Builder {
	c := b.clone()
	c.ors = append(c.ors, c.bindBetween(field, low, high))
	return c
}

// WhereIn adds "field IN ($n, ...)" with one placeholder per value. A single
// slice argument is expanded into its elements.
func (b *Builder) WhereIn(field string, values ...any) *Builder {
	c := b.clone()
	c.ands = append(c.ands, c.bindIn("WhereIn", field, false, values))
	return c
}

func (b *Builder) WhereNotIn(field string, values ...any) *Builder {
	c := b.clone()
	c.ands = append(c.ands, c.bindIn("WhereNotIn", field, true, values))
	return c
}

func (b *Builder) OrWhereIn(field string, values ...any) *Builder {
	c := b.clone()
	c.ors = append(c.ors, c.bindIn("OrWhereIn", field, false, values))
	return c
}

func (b *Builder) OrWhereNotIn(field string, values ...any) *Builder {
	c := b.clone()
	c.ors = append(c.ors, c.bindIn("OrWhereNotIn", field, true, values))
	return c
}

// Condition is one comparison for WhereAll and OrWhereAll. An empty Op
// compares with "=".
type Condition struct {
	Field string
	Op    string
	Value any
}

// Cond is shorthand for Condition{Field: field, Op: op, Value: value}.
func Cond(field, op string, value any) Condition {
	return Condition{Field: field, Op: op, Value: value}
}

// WhereAll adds each condition to the AND bucket in order, as repeated Where
// calls would.
func (b *Builder) WhereAll(conds ...Condition) *Builder {
	c := b.clone()
	for _, cond := range conds {
		field, op := cond.resolve("WhereAll")
		c.ands = append(c.ands, c.bindCondition(field, op, cond.Value))
	}
	return c
}

// OrWhereAll adds each condition to the OR bucket in order.
func (b *Builder) OrWhereAll(conds ...Condition) *Builder {
	c := b.clone()
	for _, cond := range conds {
		field, op := cond.resolve("OrWhereAll")
		c.ors = append(c.ors, c.bindCondition(field, op, cond.Value))
	}
	return c
}

func (cond Condition) resolve(op string) (string, string) {
	field := strings.TrimSpace(cond.Field)
	if field == "" {
		panic(usage(op, "condition field must not be empty"))
	}
	operator := strings.TrimSpace(cond.Op)
	if operator == "" {
		operator = "="
	}
	return field, operator
}

// WhereRaw appends fragment to the AND bucket verbatim. Placeholders inside
// it are not renumbered except by an enclosing group, and only when they fall
// within the group's own parameter range.
func (b *Builder) WhereRaw(fragment string) *Builder {
	c := b.clone()
	c.ands = append(c.ands, fragment)
	return c
}

func (b *Builder) OrWhereRaw(fragment string) *Builder {
	c := b.clone()
	c.ors = append(c.ors, fragment)
	return c
}

// splitConditionArgs resolves the (value) and (operator, value) call shapes.
func splitConditionArgs(op string, args []any) (string, any) {
	switch len(args) {
	case 1:
		return "=", args[0]
	case 2:
		operator, ok := args[0].(string)
		if !ok || strings.TrimSpace(operator) == "" {
			panic(usage(op, "operator must be a non-empty string, got %T", args[0]))
		}
		return strings.TrimSpace(operator), args[1]
	default:
		panic(usage(op, "expected (field, value) or (field, operator, value), got %d arguments after field", len(args)))
	}
}

// bindCondition renders one comparison and appends its parameter to b.
func (b *Builder) bindCondition(field, op string, value any) string {
	if value == nil {
		switch op {
		case "=":
			return field + " IS NULL"
		case "!=", "<>":
			return field + " IS NOT NULL"
		}
	}
	return field + " " + op + " " + b.bind(value)
}

func (b *Builder) bindBetween(field string, low, high any) string {
	return field + " BETWEEN " + b.bind(low) + " AND " + b.bind(high)
}

func (b *Builder) bindIn(op, field string, not bool, values []any) string {
	values = expandValues(values)
	if len(values) == 0 {
		panic(usage(op, "at least one value is required for %s", field))
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = b.bind(v)
	}
	keyword := " IN ("
	if not {
		keyword = " NOT IN ("
	}
	return field + keyword + strings.Join(placeholders, ", ") + ")"
}

// bind appends value and returns the placeholder referencing it.
func (b *Builder) bind(value any) string {
	b.params = append(b.params, value)
	return b.dialect.Placeholder(len(b.params))
}

// expandValues flattens a lone slice argument so WhereIn("id", ids) and
// WhereIn("id", ids...) behave the same. Byte slices stay scalar.
func expandValues(values []any) []any {
	if len(values) != 1 {
		return values
	}
	switch v := values[0].(type) {
	case []any:
		return v
	case []byte, nil:
		return values
	}
	rv := reflect.ValueOf(values[0])
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return values
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func usage(op, format string, args ...any) *dberr.UsageError {
	return dberr.Usage("query."+op, format, args...)
}

// shiftPlaceholders renumbers placeholders of a group fragment so they follow
// the parent's existing parameters. Numbers above own belong to raw fragments
// outside the group and are kept as written.
func shiftPlaceholders(d dialect.Dialect, fragment string, offset, own int) string {
	if offset == 0 {
		return fragment
	}
	return dialect.RewritePlaceholders(fragment, func(n int, token string) string {
		if n < 1 || n > own {
			return token
		}
		return d.Placeholder(n + offset)
	})
}
