package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/schemakit/schemakit/internal/schema"
)

// Querier is an interface for executing SQL queries, allowing for testing
// and instrumentation.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ListRequest carries one listing query: sort keys (optionally prefixed with
// "-" for descending), a filter map, a free-text search term, and pagination.
type ListRequest struct {
	Sort    []string
	Filters map[string]interface{}
	Search  string
	Page    int
	PerPage int
}

// ListResult is the outcome of a listing query. TotalCount counts all rows
// of the table (minus soft-deleted ones); FilteredCount counts the rows
// matching the request's filters and search.
type ListResult struct {
	Rows          []map[string]interface{}
	TotalCount    int
	FilteredCount int
}

// DefaultPerPage bounds unpaginated listing requests.
const DefaultPerPage = 25

// Builder executes listing and relationship queries for one table document.
type Builder struct {
	doc *schema.Schema
	db  Querier
	log *zap.Logger
}

// NewBuilder creates a query builder bound to a canonical document and a
// database handle.
func NewBuilder(doc *schema.Schema, db Querier, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{doc: doc, db: db, log: log}
}

// List executes the listing query described by req.
func (b *Builder) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	base := b.baseConditions()

	filtered := append([]*Condition(nil), base...)
	filtered = append(filtered, b.filterConditions(req.Filters)...)
	searchGroup := b.searchGroup(req.Search)

	total, err := b.count(ctx, base, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	filteredCount, err := b.count(ctx, filtered, searchGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to count filtered rows: %w", err)
	}

	sqlStr, args, err := b.buildSelect(filtered, searchGroup, b.orderBy(req.Sort), req.Page, req.PerPage)
	if err != nil {
		return nil, err
	}

	b.log.Debug("listing query", zap.String("model", b.doc.Model), zap.String("sql", sqlStr))

	rows, err := b.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute listing query: %w", err)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rows: %w", err)
	}

	for _, record := range records {
		TransformRecord(b.doc, record)
	}

	return &ListResult{
		Rows:          records,
		TotalCount:    total,
		FilteredCount: filteredCount,
	}, nil
}

// baseConditions returns the implicit predicates every query on this table
// carries. With soft delete enabled that is the not-deleted check; the column
// accessor guarantees a non-empty name.
func (b *Builder) baseConditions() []*Condition {
	var conds []*Condition
	if col, ok := b.doc.DeletedAtColumn(); ok {
		conds = append(conds, &Condition{Column: col, Operator: OpIsNull})
	}
	return conds
}

// filterConditions maps request filters onto conditions. Keys that are not
// filterable fields of the table are ignored, never forwarded as raw SQL.
func (b *Builder) filterConditions(filters map[string]interface{}) []*Condition {
	if len(filters) == 0 {
		return nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []*Condition
	for _, key := range keys {
		field := b.doc.GetField(key)
		if field == nil || !field.IsFilterable() {
			b.log.Debug("ignoring unknown filter key",
				zap.String("model", b.doc.Model), zap.String("key", key))
			continue
		}
		cond, err := filterCondition(key, field.EffectiveFilter(), filters[key])
		if err != nil {
			b.log.Debug("ignoring malformed filter",
				zap.String("model", b.doc.Model), zap.String("key", key), zap.Error(err))
			continue
		}
		conds = append(conds, cond)
	}
	return conds
}

// searchGroup builds the OR group of LIKE predicates across every searchable
// field, or nil when no term is present.
func (b *Builder) searchGroup(term string) []*Condition {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}

	fields := b.doc.SearchableFields()
	sort.Strings(fields)

	var conds []*Condition
	for _, name := range fields {
		conds = append(conds, &Condition{
			Column:   name,
			Operator: OpLike,
			Value:    "%" + term + "%",
			Or:       true,
		})
	}
	return conds
}

// orderBy resolves the request's sort keys against the sortable field set,
// falling back to the document's default sort. Each entry is a ready
// "column DIR" fragment with the identifier quoted.
func (b *Builder) orderBy(sortKeys []string) []string {
	var clauses []string
	for _, key := range sortKeys {
		direction := "ASC"
		if strings.HasPrefix(key, "-") {
			direction = "DESC"
			key = key[1:]
		}
		field := b.doc.GetField(key)
		if field == nil || !field.IsSortable() {
			continue
		}
		column := key
		if field.SortColumn != "" {
			column = field.SortColumn
		}
		clauses = append(clauses, pq.QuoteIdentifier(column)+" "+direction)
	}

	if len(clauses) == 0 {
		for _, spec := range b.doc.DefaultSort {
			field := b.doc.GetField(spec.Field)
			if field == nil {
				continue
			}
			column := spec.Field
			if field.SortColumn != "" {
				column = field.SortColumn
			}
			direction := "ASC"
			if strings.EqualFold(spec.Direction, "desc") {
				direction = "DESC"
			}
			clauses = append(clauses, pq.QuoteIdentifier(column)+" "+direction)
		}
	}

	return clauses
}

// buildSelect assembles the row query.
func (b *Builder) buildSelect(conds []*Condition, searchGroup []*Condition, orderBy []string, page, perPage int) (string, []interface{}, error) {
	var sb strings.Builder
	args := make([]interface{}, 0)
	counter := 1

	sb.WriteString("SELECT * FROM ")
	sb.WriteString(pq.QuoteIdentifier(b.doc.Table))

	where, err := whereClause(conds, searchGroup, &counter, &args)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(where)

	if len(orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orderBy, ", "))
	}

	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		page = 1
	}
	sb.WriteString(fmt.Sprintf(" LIMIT $%d", counter))
	args = append(args, perPage)
	counter++
	sb.WriteString(fmt.Sprintf(" OFFSET $%d", counter))
	args = append(args, (page-1)*perPage)

	return sb.String(), args, nil
}

// count executes a COUNT(*) with the given predicates.
func (b *Builder) count(ctx context.Context, conds []*Condition, searchGroup []*Condition) (int, error) {
	var sb strings.Builder
	args := make([]interface{}, 0)
	counter := 1

	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(pq.QuoteIdentifier(b.doc.Table))

	where, err := whereClause(conds, searchGroup, &counter, &args)
	if err != nil {
		return 0, err
	}
	sb.WriteString(where)

	var count int
	if err := b.db.QueryRowContext(ctx, sb.String(), args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// whereClause renders the AND-joined conditions plus an optional
// parenthesized OR search group.
func whereClause(conds []*Condition, searchGroup []*Condition, counter *int, args *[]interface{}) (string, error) {
	var parts []string

	for _, cond := range conds {
		sql, err := conditionToSQL(cond, counter, args)
		if err != nil {
			return "", fmt.Errorf("failed to build condition: %w", err)
		}
		parts = append(parts, sql)
	}

	if len(searchGroup) > 0 {
		var orParts []string
		for _, cond := range searchGroup {
			sql, err := conditionToSQL(cond, counter, args)
			if err != nil {
				return "", fmt.Errorf("failed to build search condition: %w", err)
			}
			orParts = append(orParts, sql)
		}
		parts = append(parts, "("+strings.Join(orParts, " OR ")+")")
	}

	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// scanRows scans SQL rows into a slice of maps.
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(map[string]interface{})
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}

		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
