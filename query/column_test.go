package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSelectField(t *testing.T) {
	tests := []struct {
		entry string
		expr  string
		alias string
	}{
		{"id", "id", ""},
		{"COUNT(id) AS total", "COUNT(id)", "total"},
		{"COUNT(id) as total", "COUNT(id)", "total"},
		{"  SUM(views)  As  view_sum ", "SUM(views)", "view_sum"},
		{"CAST(x AS int) AS n", "CAST(x AS int)", "n"},
		{"CAST(x AS int)", "CAST(x AS int)", ""},
		{"p.title AS t", "p.title", "t"},
		{"AS x", "AS x", ""},
		{"a AS 1bad", "a AS 1bad", ""},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			got := parseSelectField(tt.entry)
			assert.Equal(t, tt.expr, got.expr)
			assert.Equal(t, tt.alias, got.alias)
		})
	}
}

func TestSelectAliasesReplaceOnReselect(t *testing.T) {
	q := New("posts").Select("COUNT(id) AS total").Select("category")

	assert.Equal(t, "SELECT category FROM posts HAVING total > $1", q.Having("total", ">", 1).ToSQL())
}
