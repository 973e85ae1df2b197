package entity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Find retrieves a record by its primary key. Soft-deleted rows are
// invisible: with soft delete enabled the lookup carries the not-deleted
// predicate.
func (e *Entity) Find(ctx context.Context, id interface{}) (map[string]interface{}, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = $1",
		pq.QuoteIdentifier(e.table), pq.QuoteIdentifier(e.primaryKey))
	if col, ok := e.DeletedAtColumn(); ok {
		query += fmt.Sprintf(" AND %s IS NULL", pq.QuoteIdentifier(col))
	}
	query += " LIMIT 1"

	rows, err := e.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find record: %w", ConvertDBError(err))
	}
	defer rows.Close()

	record, err := scanFirstRow(rows)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return record, nil
}

// Exists reports whether a row with the given primary key is visible.
func (e *Entity) Exists(ctx context.Context, id interface{}) (bool, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1",
		pq.QuoteIdentifier(e.table), pq.QuoteIdentifier(e.primaryKey))
	if col, ok := e.DeletedAtColumn(); ok {
		query += fmt.Sprintf(" AND %s IS NULL", pq.QuoteIdentifier(col))
	}

	var count int
	if err := e.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, ConvertDBError(err)
	}
	return count > 0, nil
}

// scanFirstRow scans the first row of a result set into a map, converting
// raw bytes to strings. Returns sql.ErrNoRows when the set is empty.
func scanFirstRow(rows *sql.Rows) (map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}

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
	return record, nil
}
