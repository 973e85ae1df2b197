package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Update validates and applies a partial update to the record with the given
// primary key, returning the stored row. Non-writable columns in data are
// dropped, never rejected, so a form can post back readonly values it was
// shown.
func (e *Entity) Update(ctx context.Context, id interface{}, data map[string]interface{}) (map[string]interface{}, error) {
	record := e.pickWritable(data)
	if len(record) == 0 {
		return nil, fmt.Errorf("no writable fields to update")
	}

	if err := e.Validate(record, OperationUpdate); err != nil {
		return nil, err
	}

	if err := e.hashPasswordFields(record); err != nil {
		return nil, err
	}

	if err := e.populateAutoValues(record, OperationUpdate); err != nil {
		return nil, err
	}

	columns := sortedKeys(record)
	assignments := make([]string, len(columns))
	values := make([]interface{}, 0, len(columns)+1)
	for i, col := range columns {
		assignments[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), i+1)
		values = append(values, record[col])
	}
	values = append(values, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		pq.QuoteIdentifier(e.table),
		strings.Join(assignments, ", "),
		pq.QuoteIdentifier(e.primaryKey),
		len(columns)+1)
	if col, ok := e.DeletedAtColumn(); ok {
		query += fmt.Sprintf(" AND %s IS NULL", pq.QuoteIdentifier(col))
	}
	query += " RETURNING *"

	rows, err := e.db.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", ConvertDBError(err))
	}
	defer rows.Close()

	updated, err := scanFirstRow(rows)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return updated, nil
}
