package query

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemakit/schemakit/internal/schema"
)

func boolPtr(b bool) *bool { return &b }

func postsDoc() *schema.Schema {
	return &schema.Schema{
		Model:      "posts",
		Table:      "posts",
		PrimaryKey: "id",
		Fields: map[string]*schema.Field{
			"id":         {RawType: "integer", Type: schema.TypeInteger, AutoIncrement: true},
			"title":      {RawType: "string", Type: schema.TypeString},
			"body":       {RawType: "text", Type: schema.TypeText, FilterType: schema.FilterLike},
			"status":     {RawType: "string", Type: schema.TypeString, Searchable: boolPtr(false)},
			"views":      {RawType: "integer", Type: schema.TypeInteger},
			"created_at": {RawType: "datetime", Type: schema.TypeDateTime},
		},
	}
}

func newMockBuilder(t *testing.T, doc *schema.Schema) (*Builder, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBuilder(doc, db, nil), mock
}

func countRows(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func TestListDefaults(t *testing.T) {
	b, mock := newMockBuilder(t, postsDoc())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts"`)).
		WillReturnRows(countRows(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts"`)).
		WillReturnRows(countRows(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" LIMIT $1 OFFSET $2`)).
		WithArgs(DefaultPerPage, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(int64(1), "first").
			AddRow(int64(2), "second").
			AddRow(int64(3), "third"))

	result, err := b.List(context.Background(), ListRequest{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalCount)
	assert.Equal(t, 3, result.FilteredCount)
	assert.Len(t, result.Rows, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPagination(t *testing.T) {
	b, mock := newMockBuilder(t, postsDoc())

	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(countRows(50))
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(countRows(50))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" LIMIT $1 OFFSET $2`)).
		WithArgs(10, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := b.List(context.Background(), ListRequest{Page: 3, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 50, result.TotalCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFiltersAndTotalVsFilteredCount(t *testing.T) {
	b, mock := newMockBuilder(t, postsDoc())

	// Total counts all rows; filtered applies the request filters.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts"`)).
		WillReturnRows(countRows(10))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts" WHERE "status" = $1`)).
		WithArgs("published").
		WillReturnRows(countRows(4))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE "status" = $1 LIMIT $2 OFFSET $3`)).
		WithArgs("published", DefaultPerPage, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := b.List(context.Background(), ListRequest{
		Filters: map[string]interface{}{
			"status": "published",
			// Unknown keys are dropped, never forwarded.
			"; DROP TABLE posts": "x",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 10, result.TotalCount)
	assert.Equal(t, 4, result.FilteredCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFilterUsesDeclaredFilterType(t *testing.T) {
	b, mock := newMockBuilder(t, postsDoc())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts"`)).
		WillReturnRows(countRows(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts" WHERE "body" LIKE $1`)).
		WithArgs("%go%").
		WillReturnRows(countRows(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE "body" LIKE $1 LIMIT $2 OFFSET $3`)).
		WithArgs("%go%", DefaultPerPage, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := b.List(context.Background(), ListRequest{
		Filters: map[string]interface{}{"body": "go"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSearchSpansSearchableFields(t *testing.T) {
	b, mock := newMockBuilder(t, postsDoc())

	// Searchable fields in sorted order: body, title. status opted out.
	where := `WHERE ("body" LIKE $1 OR "title" LIKE $2)`
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts"`)).
		WillReturnRows(countRows(5))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts" ` + where)).
		WithArgs("%go%", "%go%").
		WillReturnRows(countRows(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" `+where+` LIMIT $3 OFFSET $4`)).
		WithArgs("%go%", "%go%", DefaultPerPage, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := b.List(context.Background(), ListRequest{Search: "go"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSortWithDescPrefix(t *testing.T) {
	b, mock := newMockBuilder(t, postsDoc())

	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(countRows(0))
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(countRows(0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" ORDER BY "views" DESC, "title" ASC LIMIT $1 OFFSET $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// Unsortable and unknown keys are dropped.
	_, err := b.List(context.Background(), ListRequest{Sort: []string{"-views", "title", "bogus"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSortColumnOverride(t *testing.T) {
	doc := postsDoc()
	doc.Fields["title"].SortColumn = "title_sort"
	b, mock := newMockBuilder(t, doc)

	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(countRows(0))
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(countRows(0))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY "title_sort" ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := b.List(context.Background(), ListRequest{Sort: []string{"title"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDefaultSortFallback(t *testing.T) {
	doc := postsDoc()
	doc.DefaultSort = []schema.SortSpec{{Field: "created_at", Direction: "desc"}, {Field: "title", Direction: "asc"}}
	b, mock := newMockBuilder(t, doc)

	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(countRows(0))
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(countRows(0))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY "created_at" DESC, "title" ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := b.List(context.Background(), ListRequest{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSoftDeletePredicate(t *testing.T) {
	doc := postsDoc()
	doc.SoftDelete = boolPtr(true)
	b, mock := newMockBuilder(t, doc)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts" WHERE "deleted_at" IS NULL`)).
		WillReturnRows(countRows(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts" WHERE "deleted_at" IS NULL`)).
		WillReturnRows(countRows(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE "deleted_at" IS NULL LIMIT $1 OFFSET $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := b.List(context.Background(), ListRequest{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCastsRowValues(t *testing.T) {
	b, mock := newMockBuilder(t, postsDoc())

	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(countRows(1))
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(countRows(1))
	mock.ExpectQuery(`SELECT \* FROM "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "views", "title"}).
			AddRow("7", "42", []byte("hello")))

	result, err := b.List(context.Background(), ListRequest{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	assert.Equal(t, int64(7), result.Rows[0]["id"])
	assert.Equal(t, int64(42), result.Rows[0]["views"])
	assert.Equal(t, "hello", result.Rows[0]["title"])
}
