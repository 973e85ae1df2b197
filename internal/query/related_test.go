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

func usersDoc() *schema.Schema {
	return &schema.Schema{
		Model:      "users",
		Table:      "users",
		PrimaryKey: "id",
		Fields: map[string]*schema.Field{
			"id":   {RawType: "integer", Type: schema.TypeInteger, AutoIncrement: true},
			"name": {RawType: "string", Type: schema.TypeString},
		},
		Relationships: []*schema.Relationship{
			{
				Name: "roles", RawType: "many_to_many", Type: schema.RelationManyToMany,
				PivotTable: "role_user", ForeignKey: "user_id", RelatedKey: "role_id",
			},
			{
				Name: "permissions", RawType: "many_to_many", Type: schema.RelationManyToMany,
				PivotTable: "permission_role", ForeignKey: "role_id", RelatedKey: "permission_id",
				Via: "roles",
			},
		},
		Details: []*schema.DetailConfig{
			{Model: "posts", ForeignKey: "user_id"},
			{Model: "roles"},
			{Model: "permissions"},
		},
	}
}

func rolesDoc() *schema.Schema {
	return &schema.Schema{
		Model:      "roles",
		Table:      "roles",
		PrimaryKey: "id",
		Fields: map[string]*schema.Field{
			"id":   {RawType: "integer", Type: schema.TypeInteger, AutoIncrement: true},
			"name": {RawType: "string", Type: schema.TypeString},
		},
	}
}

func permissionsDoc() *schema.Schema {
	return &schema.Schema{
		Model:      "permissions",
		Table:      "permissions",
		PrimaryKey: "id",
		Fields: map[string]*schema.Field{
			"id":   {RawType: "integer", Type: schema.TypeInteger, AutoIncrement: true},
			"name": {RawType: "string", Type: schema.TypeString},
		},
	}
}

func TestListRelatedUnknownRelation(t *testing.T) {
	b, mock := newMockBuilder(t, usersDoc())

	_, err := b.ListRelated(context.Background(), postsDoc(), 1, "comments", ListRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownRelation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRelatedDirectForeignKey(t *testing.T) {
	b, mock := newMockBuilder(t, usersDoc())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts" WHERE "user_id" = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(countRows(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE "user_id" = $1 LIMIT $2 OFFSET $3`)).
		WithArgs(int64(1), DefaultPerPage, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow(int64(10), "a").
			AddRow(int64(11), "b"))

	result, err := b.ListRelated(context.Background(), postsDoc(), int64(1), "posts", ListRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalCount)
	assert.Len(t, result.Rows, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRelatedDirectMissingForeignKey(t *testing.T) {
	doc := usersDoc()
	doc.Details[0].ForeignKey = ""
	b, mock := newMockBuilder(t, doc)

	_, err := b.ListRelated(context.Background(), postsDoc(), 1, "posts", ListRequest{})
	require.Error(t, err)
	assert.True(t, IsMisconfigured(err))
	// No SQL runs for a misconfigured relationship.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRelatedSinglePivot(t *testing.T) {
	b, mock := newMockBuilder(t, usersDoc())

	join := `FROM "roles" JOIN "role_user" ON "roles"."id" = "role_user"."role_id"`
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT("roles"."id") `+join+` WHERE "role_user"."user_id" = $1`)).
		WithArgs(int64(1)).
		WillReturnRows(countRows(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "roles".* `+join+` WHERE "role_user"."user_id" = $1 LIMIT $2 OFFSET $3`)).
		WithArgs(int64(1), DefaultPerPage, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "admin").
			AddRow(int64(2), "editor"))

	result, err := b.ListRelated(context.Background(), rolesDoc(), int64(1), "roles", ListRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalCount)
	assert.Equal(t, "admin", result.Rows[0]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRelatedPivotChainViaUsesDistinct(t *testing.T) {
	b, mock := newMockBuilder(t, usersDoc())

	join := `FROM "permissions"` +
		` JOIN "permission_role" ON "permissions"."id" = "permission_role"."permission_id"` +
		` JOIN "role_user" ON "permission_role"."role_id" = "role_user"."role_id"`
	where := ` WHERE "role_user"."user_id" = $1`

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(DISTINCT "permissions"."id") `+join+where)).
		WithArgs(int64(1)).
		WillReturnRows(countRows(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT "permissions".* `+join+where+` LIMIT $2 OFFSET $3`)).
		WithArgs(int64(1), DefaultPerPage, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "read").
			AddRow(int64(2), "write").
			AddRow(int64(3), "delete"))

	result, err := b.ListRelated(context.Background(), permissionsDoc(), int64(1), "permissions", ListRequest{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalCount)
	assert.Len(t, result.Rows, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRelatedPivotQualifiesFilters(t *testing.T) {
	b, mock := newMockBuilder(t, usersDoc())

	join := `FROM "roles" JOIN "role_user" ON "roles"."id" = "role_user"."role_id"`
	where := ` WHERE "role_user"."user_id" = $1 AND "roles"."name" = $2`

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT("roles"."id") `+join+where)).
		WithArgs(int64(1), "admin").
		WillReturnRows(countRows(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "roles".* `+join+where+` LIMIT $3 OFFSET $4`)).
		WithArgs(int64(1), "admin", DefaultPerPage, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "admin"))

	result, err := b.ListRelated(context.Background(), rolesDoc(), int64(1), "roles", ListRequest{
		Filters: map[string]interface{}{"name": "admin"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRelatedPivotExcludesSoftDeletedRelated(t *testing.T) {
	related := rolesDoc()
	related.SoftDelete = boolPtr(true)
	b, mock := newMockBuilder(t, usersDoc())

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE "role_user"."user_id" = $1 AND "roles"."deleted_at" IS NULL`)).
		WithArgs(int64(1)).
		WillReturnRows(countRows(0))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE "role_user"."user_id" = $1 AND "roles"."deleted_at" IS NULL LIMIT $2 OFFSET $3`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := b.ListRelated(context.Background(), related, int64(1), "roles", ListRequest{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRelatedMisconfiguredPivotFailsBeforeSQL(t *testing.T) {
	doc := usersDoc()
	doc.Relationships[0].PivotTable = ""
	b, mock := newMockBuilder(t, doc)

	_, err := b.ListRelated(context.Background(), rolesDoc(), int64(1), "roles", ListRequest{})
	require.Error(t, err)
	assert.True(t, IsMisconfigured(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveChainDetectsCycle(t *testing.T) {
	doc := usersDoc()
	// roles -> permissions -> roles
	doc.Relationships[0].Via = "permissions"
	b, _ := newMockBuilder(t, doc)

	_, err := b.resolveChain(doc.Relationships[0])
	require.Error(t, err)
	assert.True(t, IsMisconfigured(err))
	assert.Contains(t, err.Error(), "cycle")
}

func TestResolveChainOrdersOutermostFirst(t *testing.T) {
	doc := usersDoc()
	b, _ := newMockBuilder(t, doc)

	chain, err := b.resolveChain(doc.GetRelationship("permissions"))
	require.NoError(t, err)
	require.Len(t, chain, 2)

	// The parent-side pivot comes first; the related-side pivot last.
	assert.Equal(t, "role_user", chain[0].table)
	assert.Equal(t, "permission_role", chain[1].table)
}
