package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseListRequest(t *testing.T) {
	r := httptest.NewRequest("GET",
		"/posts?filter[status]=published&filter[author_id]=123&sort=-created_at,title&search=go&page=2&perPage=10", nil)

	req := ParseListRequest(r)

	assert.Equal(t, map[string]interface{}{"status": "published", "author_id": "123"}, req.Filters)
	assert.Equal(t, []string{"-created_at", "title"}, req.Sort)
	assert.Equal(t, "go", req.Search)
	assert.Equal(t, 2, req.Page)
	assert.Equal(t, 10, req.PerPage)
}

func TestParseListRequestDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/posts", nil)

	req := ParseListRequest(r)

	assert.Empty(t, req.Filters)
	assert.Nil(t, req.Sort)
	assert.Equal(t, "", req.Search)
	assert.Equal(t, 0, req.Page)
	assert.Equal(t, 0, req.PerPage)
}

func TestParseListRequestIgnoresBadPagination(t *testing.T) {
	r := httptest.NewRequest("GET", "/posts?page=abc&perPage=-5", nil)

	req := ParseListRequest(r)
	assert.Equal(t, 0, req.Page)
	assert.Equal(t, 0, req.PerPage)
}

func TestParseSortTrimsEntries(t *testing.T) {
	r := httptest.NewRequest("GET", "/posts?sort=+-a+,+b+,", nil)
	// The + above decodes to spaces.
	assert.Equal(t, []string{"-a", "b"}, ParseSort(r))
}

func TestParseContext(t *testing.T) {
	r := httptest.NewRequest("GET", "/posts/schema?context=list,detail", nil)
	assert.Equal(t, "list,detail", ParseContext(r))

	r = httptest.NewRequest("GET", "/posts/schema", nil)
	assert.Equal(t, "", ParseContext(r))
}

func TestParseBool(t *testing.T) {
	r := httptest.NewRequest("GET", "/posts?related=true", nil)
	assert.True(t, ParseBool(r, "related"))

	r = httptest.NewRequest("GET", "/posts?related=nope", nil)
	assert.False(t, ParseBool(r, "related"))

	r = httptest.NewRequest("GET", "/posts", nil)
	assert.False(t, ParseBool(r, "related"))
}
