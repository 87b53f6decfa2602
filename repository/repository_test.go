package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/txscope/connector"
	"github.com/Konsultn-Engineering/txscope/database"
	"github.com/Konsultn-Engineering/txscope/database/dbtest"
	"github.com/Konsultn-Engineering/txscope/dberr"
	"github.com/Konsultn-Engineering/txscope/query"
	"github.com/Konsultn-Engineering/txscope/schema"
	"github.com/Konsultn-Engineering/txscope/session"
)

type Post struct {
	ID     string
	Title  string
	Status string
}

func (p *Post) Fields() []schema.Field {
	return []schema.Field{
		schema.F("id", p.ID),
		schema.F("title", p.Title),
		schema.F("status", p.Status),
	}
}

func postFromRow(row database.Row) (*Post, error) {
	id, err := schema.Value[string](row, "id")
	if err != nil {
		return nil, err
	}
	title, err := schema.Value[string](row, "title")
	if err != nil {
		return nil, err
	}
	status, err := schema.Value[string](row, "status")
	if err != nil {
		return nil, err
	}
	return &Post{ID: id, Title: title, Status: status}, nil
}

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type fixedID string

func (g fixedID) Generate() (any, error) { return string(g), nil }
func (g fixedID) Type() string           { return "fixed" }

// inTx runs fn in a transaction on pool and returns the statements it issued.
func inTx(t *testing.T, pool *dbtest.Pool, fn func(ctx context.Context)) []dbtest.Statement {
	t.Helper()
	r := connector.NewRegistry()
	r.Register("main", pool)
	m := session.NewManager(r)

	before := len(pool.Conns())
	err := m.Transaction(context.Background(), "main", func(ctx context.Context, tx database.Tx) error {
		fn(ctx)
		return nil
	})
	require.NoError(t, err)
	conns := pool.Conns()
	require.Len(t, conns, before+1)
	return conns[len(conns)-1].Statements()
}

func sqls(stmts []dbtest.Statement) []string {
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.SQL
	}
	return out
}

func TestNewDerivesTableName(t *testing.T) {
	assert.Equal(t, "posts", New[*Post]("", postFromRow).Table())
	assert.Equal(t, "blog.posts", New[*Post]("", postFromRow, WithSchema("blog")).Table())
	assert.Equal(t, "articles", New[*Post]("articles", postFromRow).Table())

	assert.Panics(t, func() { New[*Post]("posts", nil) })
}

func TestCreate(t *testing.T) {
	pool := dbtest.NewPool()
	repo := New[*Post]("posts", postFromRow, WithTimestamps(), WithClock(fixedClock), WithIDGenerator(fixedID("p-1")))

	var created *Post
	stmts := inTx(t, pool, func(ctx context.Context) {
		var err error
		created, err = repo.Create(ctx, &Post{Title: "hello", Status: "draft"})
		require.NoError(t, err)
	})

	assert.Equal(t, &Post{ID: "p-1", Title: "hello", Status: "draft"}, created)
	require.Len(t, stmts, 1)
	assert.Equal(t, "INSERT INTO posts (id, title, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)", stmts[0].SQL)
	assert.Equal(t, []any{"p-1", "hello", "draft", fixedNow, fixedNow}, stmts[0].Args)
}

func TestCreateKeepsExistingID(t *testing.T) {
	pool := dbtest.NewPool()
	repo := New[*Post]("posts", postFromRow, WithSoftDelete())

	stmts := inTx(t, pool, func(ctx context.Context) {
		_, err := repo.Create(ctx, &Post{ID: "mine", Title: "t"})
		require.NoError(t, err)
	})

	assert.Equal(t, "INSERT INTO posts (id, title, status, deleted_at) VALUES ($1, $2, $3, $4)", stmts[0].SQL)
	assert.Equal(t, []any{"mine", "t", "", nil}, stmts[0].Args)
}

func TestCreateGeneratesUUIDByDefault(t *testing.T) {
	pool := dbtest.NewPool()
	repo := New[*Post]("posts", postFromRow)

	inTx(t, pool, func(ctx context.Context) {
		p, err := repo.Create(ctx, &Post{Title: "t"})
		require.NoError(t, err)
		assert.Len(t, p.ID, 36)
	})
}

func TestCreateMany(t *testing.T) {
	pool := dbtest.NewPool()
	repo := New[*Post]("posts", postFromRow)

	stmts := inTx(t, pool, func(ctx context.Context) {
		posts, err := repo.CreateMany(ctx, []*Post{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}})
		require.NoError(t, err)
		assert.Len(t, posts, 2)

		none, err := repo.CreateMany(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	require.Len(t, stmts, 1)
	assert.Equal(t, "INSERT INTO posts (id, title, status) VALUES ($1, $2, $3), ($4, $5, $6)", stmts[0].SQL)
	assert.Equal(t, []any{"a", "A", "", "b", "B", ""}, stmts[0].Args)
}

func TestGetAppliesSoftDeleteScope(t *testing.T) {
	pool := dbtest.NewPool().Handle(func(sql string, args []any) dbtest.Response {
		return dbtest.Response{Rows: []database.Row{
			{"id": "1", "title": "one", "status": "published"},
			{"id": "2", "title": "two", "status": "published"},
		}}
	})
	repo := New[*Post]("posts", postFromRow, WithSoftDelete()).
		Where("status", "published").
		OrWhere("featured", true)

	stmts := inTx(t, pool, func(ctx context.Context) {
		posts, err := repo.Get(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, "two", posts[1].Title)

		_, err = repo.OnlyTrashed().Get(ctx)
		require.NoError(t, err)
		_, err = repo.WithTrashed().Get(ctx)
		require.NoError(t, err)
	})

	assert.Equal(t, []string{
		"SELECT * FROM posts WHERE (status = $1 OR featured = $2) AND deleted_at IS NULL",
		"SELECT * FROM posts WHERE (status = $1 OR featured = $2) AND deleted_at IS NOT NULL",
		"SELECT * FROM posts WHERE status = $1 OR featured = $2",
	}, sqls(stmts))
	assert.Equal(t, []any{"published", true}, stmts[0].Args)
}

func TestCompositionIsImmutable(t *testing.T) {
	base := New[*Post]("posts", postFromRow)
	drafts := base.Where("status", "draft")

	assert.Equal(t, "SELECT * FROM posts", base.ToSQL())
	assert.Equal(t, "SELECT * FROM posts WHERE status = $1", drafts.ToSQL())
	assert.Equal(t, "SELECT * FROM posts WHERE status = $1 ORDER BY created_at DESC LIMIT 10 OFFSET 10",
		drafts.OrderByDesc("created_at").Paginate(2, 10).ToSQL())
	assert.Equal(t, "SELECT * FROM posts WHERE status = $1", drafts.ToSQL())
}

func TestQueryComposition(t *testing.T) {
	repo := New[*Post]("posts", postFromRow).
		Select("status", "COUNT(*) AS total").
		WhereIn("status", "draft", "published").
		WhereNotIn("id", 7).
		WhereNotNull("title").
		WhereBetween("views", 1, 10).
		WhereGroup(func(g *query.Builder) *query.Builder {
			return g.Where("a", 1).OrWhere("b", 2)
		}).
		GroupBy("status").
		Having("total", ">", 1).
		OrderByAsc("status").
		Limit(5).
		Offset(1)

	sql, params := repo.Query().Build()
	assert.Equal(t, "SELECT status, COUNT(*) AS total FROM posts WHERE status IN ($1, $2) AND id NOT IN ($3) AND title IS NOT NULL AND views BETWEEN $4 AND $5 AND (a = $6 OR b = $7) GROUP BY status HAVING COUNT(*) > $8 ORDER BY status ASC LIMIT 5 OFFSET 1", sql)
	assert.Equal(t, []any{"draft", "published", 7, 1, 10, 1, 2, 1}, params)
}

func TestRows(t *testing.T) {
	pool := dbtest.NewPool().Handle(func(sql string, args []any) dbtest.Response {
		return dbtest.Response{Rows: []database.Row{{"status": "draft", "total": int64(3)}}}
	})
	repo := New[*Post]("posts", postFromRow).Select("status", "COUNT(*) AS total").GroupBy("status")

	inTx(t, pool, func(ctx context.Context) {
		rows, err := repo.Rows(ctx)
		require.NoError(t, err)
		assert.Equal(t, []database.Row{{"status": "draft", "total": int64(3)}}, rows)
	})
}

func TestFirstAndFindByID(t *testing.T) {
	pool := dbtest.NewPool().Handle(func(sql string, args []any) dbtest.Response {
		if len(args) > 0 && args[0] == "1" {
			return dbtest.Response{Rows: []database.Row{{"id": "1", "title": "one"}}}
		}
		return dbtest.Response{}
	})
	repo := New[*Post]("posts", postFromRow).Where("status", "ignored")

	stmts := inTx(t, pool, func(ctx context.Context) {
		p, found, err := repo.FindByID(ctx, "1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "one", p.Title)

		p, found, err = repo.FindByID(ctx, "2")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, p)

		_, found, err = repo.First(ctx)
		require.NoError(t, err)
		assert.False(t, found)
	})

	assert.Equal(t, []string{
		"SELECT * FROM posts WHERE id = $1 LIMIT 1",
		"SELECT * FROM posts WHERE id = $1 LIMIT 1",
		"SELECT * FROM posts WHERE status = $1 LIMIT 1",
	}, sqls(stmts))
}

func TestCountAndExists(t *testing.T) {
	pool := dbtest.NewPool().Handle(func(sql string, args []any) dbtest.Response {
		if len(args) > 0 && args[0] == "none" {
			return dbtest.Response{Rows: []database.Row{{"count": int64(0)}}}
		}
		return dbtest.Response{Rows: []database.Row{{"count": int64(5)}}}
	})
	repo := New[*Post]("posts", postFromRow, WithSoftDelete())

	stmts := inTx(t, pool, func(ctx context.Context) {
		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		ok, err := repo.Where("status", "none").Exists(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	assert.Equal(t, "SELECT COUNT(*) FROM posts WHERE deleted_at IS NULL", stmts[0].SQL)
	assert.Equal(t, "SELECT COUNT(*) FROM posts WHERE status = $1 AND deleted_at IS NULL", stmts[1].SQL)
}

func TestCountIgnoresPaging(t *testing.T) {
	pool := dbtest.NewPool().Handle(func(sql string, args []any) dbtest.Response {
		return dbtest.Response{Rows: []database.Row{{"count": int64(41)}}}
	})
	listing := New[*Post]("posts", postFromRow).
		Where("status", "draft").
		OrderByDesc("created_at").
		Paginate(3, 20)

	stmts := inTx(t, pool, func(ctx context.Context) {
		n, err := listing.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(41), n)

		ok, err := listing.Exists(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	require.Len(t, stmts, 2)
	for _, s := range stmts {
		assert.Equal(t, "SELECT COUNT(*) FROM posts WHERE status = $1", s.SQL)
		assert.Equal(t, []any{"draft"}, s.Args)
	}
	assert.Equal(t, "SELECT * FROM posts WHERE status = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 40", listing.ToSQL())
}

func TestWhereAllPassThrough(t *testing.T) {
	repo := New[*Post]("posts", postFromRow, WithSoftDelete()).
		WhereAll(query.Cond("status", "=", "draft"), query.Cond("views", ">", 10)).
		OrWhereAll(query.Cond("title", "=", "pinned"))

	sql, params := repo.Query().Build()
	assert.Equal(t, "SELECT * FROM posts WHERE ((status = $1 AND views > $2) OR title = $3) AND deleted_at IS NULL", sql)
	assert.Equal(t, []any{"draft", 10, "pinned"}, params)
}

func TestUpdate(t *testing.T) {
	pool := dbtest.NewPool().Handle(func(sql string, args []any) dbtest.Response {
		if sql == "SELECT * FROM posts WHERE id = $1 LIMIT 1" {
			return dbtest.Response{Rows: []database.Row{{"id": "1", "title": "new", "status": "draft"}}}
		}
		return dbtest.Response{RowsAffected: 1}
	})
	repo := New[*Post]("posts", postFromRow, WithTimestamps(), WithClock(fixedClock))

	stmts := inTx(t, pool, func(ctx context.Context) {
		p, found, err := repo.Update(ctx, "1", map[string]any{"title": "new", "status": "draft"})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "new", p.Title)
	})

	require.Len(t, stmts, 2)
	assert.Equal(t, "UPDATE posts SET status = $2, title = $3, updated_at = $4 WHERE id = $1", stmts[0].SQL)
	assert.Equal(t, []any{"1", "draft", "new", fixedNow}, stmts[0].Args)
	assert.Equal(t, "SELECT * FROM posts WHERE id = $1 LIMIT 1", stmts[1].SQL)
}

func TestUpdateWithoutChangesOnlyReads(t *testing.T) {
	pool := dbtest.NewPool()
	repo := New[*Post]("posts", postFromRow)

	stmts := inTx(t, pool, func(ctx context.Context) {
		_, found, err := repo.Update(ctx, "1", nil)
		require.NoError(t, err)
		assert.False(t, found)
	})

	assert.Equal(t, []string{"SELECT * FROM posts WHERE id = $1 LIMIT 1"}, sqls(stmts))
}

func TestUpdateWhere(t *testing.T) {
	pool := dbtest.NewPool().Handle(func(sql string, args []any) dbtest.Response {
		return dbtest.Response{RowsAffected: 3}
	})
	repo := New[*Post]("posts", postFromRow, WithSoftDelete())

	stmts := inTx(t, pool, func(ctx context.Context) {
		_, err := repo.UpdateWhere(ctx, map[string]any{"status": "archived"})
		assert.ErrorIs(t, err, dberr.ErrUsage)

		n, err := repo.Where("status", "draft").OrWhere("title", "").UpdateWhere(ctx, map[string]any{"status": "archived"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	require.Len(t, stmts, 1)
	assert.Equal(t, "UPDATE posts SET status = $1 WHERE (status = $2 OR title = $3) AND deleted_at IS NULL", stmts[0].SQL)
	assert.Equal(t, []any{"archived", "draft", ""}, stmts[0].Args)
}

func TestDelete(t *testing.T) {
	pool := dbtest.NewPool().Handle(func(sql string, args []any) dbtest.Response {
		if args[0] == "gone" {
			return dbtest.Response{RowsAffected: 0}
		}
		return dbtest.Response{RowsAffected: 1}
	})
	hard := New[*Post]("posts", postFromRow)
	soft := New[*Post]("posts", postFromRow, WithSoftDelete(), WithClock(fixedClock))

	stmts := inTx(t, pool, func(ctx context.Context) {
		ok, err := hard.Delete(ctx, "1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = hard.Delete(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = soft.Delete(ctx, "1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = soft.ForceDelete(ctx, "1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	assert.Equal(t, []string{
		"DELETE FROM posts WHERE id = $1",
		"DELETE FROM posts WHERE id = $1",
		"UPDATE posts SET deleted_at = $2 WHERE id = $1",
		"DELETE FROM posts WHERE id = $1",
	}, sqls(stmts))
	assert.Equal(t, []any{"1", fixedNow}, stmts[2].Args)
}

func TestDeleteWhere(t *testing.T) {
	pool := dbtest.NewPool().Handle(func(sql string, args []any) dbtest.Response {
		return dbtest.Response{RowsAffected: 2}
	})
	hard := New[*Post]("posts", postFromRow)
	soft := New[*Post]("posts", postFromRow, WithSoftDelete(), WithClock(fixedClock))

	stmts := inTx(t, pool, func(ctx context.Context) {
		_, err := hard.DeleteWhere(ctx)
		assert.True(t, dberr.IsUsage(err))
		_, err = soft.OrderBy("id").DeleteWhere(ctx)
		assert.True(t, dberr.IsUsage(err))

		n, err := hard.Where("status", "spam").DeleteWhere(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, err = soft.Where("status", "spam").DeleteWhere(ctx)
		require.NoError(t, err)

		_, err = hard.DeleteMany(ctx, "a", "b")
		require.NoError(t, err)

		n, err = hard.DeleteMany(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	assert.Equal(t, []string{
		"DELETE FROM posts WHERE status = $1",
		"UPDATE posts SET deleted_at = $1 WHERE status = $2 AND deleted_at IS NULL",
		"DELETE FROM posts WHERE id IN ($1, $2)",
	}, sqls(stmts))
	assert.Equal(t, []any{fixedNow, "spam"}, stmts[1].Args)
}

func TestRestore(t *testing.T) {
	pool := dbtest.NewPool().Handle(func(sql string, args []any) dbtest.Response {
		switch sql {
		case "UPDATE posts SET deleted_at = NULL WHERE id = $1":
			if args[0] == "1" {
				return dbtest.Response{RowsAffected: 1}
			}
			return dbtest.Response{}
		case "SELECT * FROM posts WHERE id = $1 LIMIT 1":
			return dbtest.Response{Rows: []database.Row{{"id": "1", "title": "back"}}}
		}
		return dbtest.Response{}
	})
	soft := New[*Post]("posts", postFromRow, WithSoftDelete())

	stmts := inTx(t, pool, func(ctx context.Context) {
		p, found, err := soft.Restore(ctx, "1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "back", p.Title)

		_, found, err = soft.Restore(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)

		_, _, err = New[*Post]("posts", postFromRow).Restore(ctx, "1")
		assert.ErrorIs(t, err, dberr.ErrUsage)
	})

	assert.Equal(t, []string{
		"UPDATE posts SET deleted_at = NULL WHERE id = $1",
		"SELECT * FROM posts WHERE id = $1 LIMIT 1",
		"UPDATE posts SET deleted_at = NULL WHERE id = $1",
	}, sqls(stmts))
}

func TestOperationsRequireTransaction(t *testing.T) {
	repo := New[*Post]("posts", postFromRow)

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, session.ErrNoActiveTransaction)
	_, err = repo.Create(context.Background(), &Post{Title: "x"})
	assert.ErrorIs(t, err, session.ErrNoActiveTransaction)
}

func TestRowMapperErrorsAreWrapped(t *testing.T) {
	pool := dbtest.NewPool().Handle(func(sql string, args []any) dbtest.Response {
		return dbtest.Response{Rows: []database.Row{{"id": "1"}}}
	})
	bad := errors.New("bad row")
	repo := New[*Post]("posts", func(database.Row) (*Post, error) { return nil, bad })

	inTx(t, pool, func(ctx context.Context) {
		_, err := repo.Get(ctx)
		assert.ErrorIs(t, err, bad)
		assert.EqualError(t, err, "map posts row: bad row")
	})
}
