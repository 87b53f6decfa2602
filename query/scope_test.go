package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsolate(t *testing.T) {
	q := New("posts").Where("a", 1).OrWhere("b", 2).Isolate().WhereNull("deleted_at")

	sql, params := q.Build()
	assert.Equal(t, "SELECT * FROM posts WHERE (a = $1 OR b = $2) AND deleted_at IS NULL", sql)
	assert.Equal(t, []any{1, 2}, params)
}

func TestIsolateWithoutOrIsNoop(t *testing.T) {
	q := New("posts").Where("a", 1)
	assert.Equal(t, q.ToSQL(), q.Isolate().ToSQL())
}

func TestWhereClauseFrom(t *testing.T) {
	q := New("posts").Where("a", 1).WhereIn("b", 2, 3)

	where, params := q.WhereClauseFrom(2)
	assert.Equal(t, "a = $3 AND b IN ($4, $5)", where)
	assert.Equal(t, []any{1, 2, 3}, params)

	where, _ = q.WhereClauseFrom(0)
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", where)
}

func TestWithoutPaging(t *testing.T) {
	q := New("posts").
		Where("status", "draft").
		GroupBy("author_id").
		Having("COUNT(*)", ">", 1).
		OrderByDesc("created_at").
		Paginate(3, 20)

	sql, params := q.WithoutPaging().Build()
	assert.Equal(t, "SELECT * FROM posts WHERE status = $1 GROUP BY author_id HAVING COUNT(*) > $2", sql)
	assert.Equal(t, []any{"draft", 1}, params)
	assert.Contains(t, q.ToSQL(), "ORDER BY created_at DESC LIMIT 20 OFFSET 40")
}
