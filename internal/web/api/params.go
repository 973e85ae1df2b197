package api

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/schemakit/schemakit/internal/query"
)

// filterPattern matches query parameters like filter[key]
var filterPattern = regexp.MustCompile(`^filter\[([^\]]+)\]$`)

// ParseListRequest reads the listing parameters out of a request's query
// string. Example: ?filter[status]=active&sort=-created_at&search=abc&page=2
func ParseListRequest(r *http.Request) query.ListRequest {
	raw := ParseFilter(r)
	filters := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		filters[k] = v
	}

	return query.ListRequest{
		Filters: filters,
		Sort:    ParseSort(r),
		Search:  strings.TrimSpace(r.URL.Query().Get("search")),
		Page:    parsePositiveInt(r, "page"),
		PerPage: parsePositiveInt(r, "perPage"),
	}
}

// ParseFilter parses the filter query parameters into a map of filter keys
// to values. Example: ?filter[status]=published&filter[author_id]=123
// Returns: {"status": "published", "author_id": "123"}
func ParseFilter(r *http.Request) map[string]string {
	result := make(map[string]string)

	for key, values := range r.URL.Query() {
		matches := filterPattern.FindStringSubmatch(key)
		if len(matches) != 2 {
			continue
		}

		filterKey := matches[1]
		if len(values) > 0 {
			result[filterKey] = values[0]
		}
	}

	return result
}

// ParseSort parses the sort query parameter into a slice of sort fields.
// Example: ?sort=-created_at,title returns ["-created_at", "title"]
// The "-" prefix indicates descending sort order.
func ParseSort(r *http.Request) []string {
	sort := r.URL.Query().Get("sort")
	if sort == "" {
		return nil
	}

	parts := strings.Split(sort, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// ParseContext reads the schema context parameter, which may be a single
// name or a comma-joined set. Missing or blank means the default context.
func ParseContext(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("context"))
}

// ParseBool reads a boolean query parameter. Anything strconv does not
// recognize counts as false.
func ParseBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func parsePositiveInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0
	}
	return n
}
