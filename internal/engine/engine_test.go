package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemakit/schemakit/internal/cache"
	"github.com/schemakit/schemakit/internal/config"
	"github.com/schemakit/schemakit/internal/query"
	"github.com/schemakit/schemakit/internal/schema"
)

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testConfig(root string) *config.Config {
	return &config.Config{
		SchemaRoot:        root,
		DefaultConnection: "primary",
	}
}

func newTestEngine(t *testing.T, root string, opts ...Option) *Engine {
	t.Helper()
	e, err := New(testConfig(root), nil, opts...)
	require.NoError(t, err)
	return e
}

const usersJSON = `{
	"model": "users",
	"table": "users",
	"fields": {
		"id": {"type": "integer", "autoIncrement": true},
		"name": {"type": "string"},
		"active": {"type": "toggle"}
	}
}`

func TestGetSchemaLoadsAndNormalizes(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "users.json", usersJSON)
	e := newTestEngine(t, root)

	doc, err := e.GetSchema(context.Background(), "users")
	require.NoError(t, err)

	assert.Equal(t, "users", doc.Model)
	assert.Equal(t, "id", doc.PrimaryKey)
	assert.Equal(t, schema.TypeString, doc.Fields["name"].Type)
	// Shorthand boolean spellings are canonicalized before caching.
	assert.Equal(t, "boolean", doc.Fields["active"].RawType)
	assert.Equal(t, "toggle", doc.Fields["active"].UI)
}

func TestGetSchemaIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "users.json", usersJSON)
	e := newTestEngine(t, root)
	ctx := context.Background()

	first, err := e.GetSchema(ctx, "users")
	require.NoError(t, err)
	second, err := e.GetSchema(ctx, "users")
	require.NoError(t, err)

	// Repeat lookups return the identical cached object.
	assert.Same(t, first, second)
}

func TestGetSchemaDistinguishesConnections(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "users.json", usersJSON)
	writeDoc(t, root, filepath.Join("analytics", "users.json"), `{
		"model": "users", "table": "users_analytics",
		"fields": {"name": {"type": "string"}}
	}`)
	e := newTestEngine(t, root)
	ctx := context.Background()

	plain, err := e.GetSchema(ctx, "users")
	require.NoError(t, err)
	qualified, err := e.GetSchema(ctx, "users@analytics")
	require.NoError(t, err)

	assert.Equal(t, "users", plain.Table)
	assert.Equal(t, "users_analytics", qualified.Table)
	assert.Equal(t, "analytics", qualified.SourceConnection)
}

func TestGetSchemaNotFound(t *testing.T) {
	e := newTestEngine(t, t.TempDir())

	_, err := e.GetSchema(context.Background(), "ghost")
	assert.True(t, schema.IsNotFound(err))
}

func TestGetSchemaInvalidDocument(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "bad.json", `{"model": "bad"}`)
	e := newTestEngine(t, root)

	_, err := e.GetSchema(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, schema.IsValidationError(err))
}

func TestClearCacheForcesReload(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "users.json", usersJSON)
	e := newTestEngine(t, root)
	ctx := context.Background()

	first, err := e.GetSchema(ctx, "users")
	require.NoError(t, err)

	e.ClearCache(ctx, "users", "")

	second, err := e.GetSchema(ctx, "users")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestClearAllCache(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "users.json", usersJSON)
	e := newTestEngine(t, root)
	ctx := context.Background()

	first, err := e.GetSchema(ctx, "users")
	require.NoError(t, err)

	e.ClearAllCache(ctx)

	second, err := e.GetSchema(ctx, "users")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestSharedCacheServesSecondProcess(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "users.json", usersJSON)
	shared := cache.NewMemoryCache()
	ctx := context.Background()

	first := newTestEngine(t, root, WithSharedCache(shared))
	_, err := first.GetSchema(ctx, "users")
	require.NoError(t, err)

	// Remove the document; a second engine sharing the cache still resolves it.
	require.NoError(t, os.Remove(filepath.Join(root, "users.json")))

	second := newTestEngine(t, root, WithSharedCache(shared))
	doc, err := second.GetSchema(ctx, "users")
	require.NoError(t, err)

	assert.Equal(t, "users", doc.Model)
	// The shared-tier round trip restores the resolved enums.
	assert.Equal(t, schema.TypeString, doc.Fields["name"].Type)
}

// brokenCache fails every operation; the engine must treat it as a miss.
type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("cache down")
}
func (brokenCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("cache down")
}
func (brokenCache) Delete(ctx context.Context, key string) error { return errors.New("cache down") }
func (brokenCache) Clear(ctx context.Context) error              { return errors.New("cache down") }
func (brokenCache) Exists(ctx context.Context, key string) (bool, error) {
	return false, errors.New("cache down")
}

func TestBrokenSharedCacheIsBestEffort(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "users.json", usersJSON)
	e := newTestEngine(t, root, WithSharedCache(brokenCache{}))

	doc, err := e.GetSchema(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, "users", doc.Model)
}

func TestFilterSchemaWithRelatedSkipsMissing(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "users.json", `{
		"model": "users", "table": "users",
		"fields": {"name": {"type": "string"}},
		"details": [
			{"model": "posts", "foreignKey": "user_id"},
			{"model": "ghosts", "foreignKey": "user_id"}
		]
	}`)
	writeDoc(t, root, "posts.json", `{
		"model": "posts", "table": "posts",
		"fields": {"title": {"type": "string"}}
	}`)
	e := newTestEngine(t, root)
	ctx := context.Background()

	doc, err := e.GetSchema(ctx, "users")
	require.NoError(t, err)

	view := e.FilterSchemaWithRelated(ctx, doc, "detail", true, "list", "")
	require.NotNil(t, view)

	assert.Contains(t, view.Related, "posts")
	assert.NotContains(t, view.Related, "ghosts")
	assert.NotNil(t, view.Related["posts"].Context("list"))
}

func TestFilterSchemaWithRelatedDisabled(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "users.json", usersJSON)
	e := newTestEngine(t, root)
	ctx := context.Background()

	doc, err := e.GetSchema(ctx, "users")
	require.NoError(t, err)

	view := e.FilterSchemaWithRelated(ctx, doc, "list", false, "", "")
	assert.Nil(t, view.Related)
}

func TestGetModelInstanceBindsRegisteredConnection(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "users.json", usersJSON)
	e := newTestEngine(t, root)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	e.Connections().Register("primary", db)

	ent, err := e.GetModelInstance(context.Background(), "users")
	require.NoError(t, err)

	assert.Equal(t, "users", ent.Table())
	assert.Equal(t, "primary", ent.Connection())
	assert.Same(t, db, ent.DB())
}

func TestGetModelInstanceUnknownConnection(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "users.json", usersJSON)
	e := newTestEngine(t, root)

	_, err := e.GetModelInstance(context.Background(), "users@nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown connection")
}

func TestEngineList(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "users.json", usersJSON)
	e := newTestEngine(t, root)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	e.Connections().Register("primary", db)

	count := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "users"`)).
		WillReturnRows(count)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Ada"))

	result, err := e.List(context.Background(), "users", query.ListRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalCount)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Ada", result.Rows[0]["name"])
}
