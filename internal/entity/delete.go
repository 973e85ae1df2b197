package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Delete removes the record with the given primary key. With soft delete
// enabled the row is stamped rather than removed; otherwise it is deleted
// outright. Returns ErrNotFound when no visible row matched.
func (e *Entity) Delete(ctx context.Context, id interface{}) error {
	if col, ok := e.DeletedAtColumn(); ok {
		return e.softDelete(ctx, id, col)
	}
	return e.hardDelete(ctx, id)
}

func (e *Entity) softDelete(ctx context.Context, id interface{}, col string) error {
	query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2 AND %s IS NULL",
		pq.QuoteIdentifier(e.table),
		pq.QuoteIdentifier(col),
		pq.QuoteIdentifier(e.primaryKey),
		pq.QuoteIdentifier(col))

	result, err := e.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to soft delete record: %w", ConvertDBError(err))
	}
	return checkAffected(result.RowsAffected())
}

func (e *Entity) hardDelete(ctx context.Context, id interface{}) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		pq.QuoteIdentifier(e.table), pq.QuoteIdentifier(e.primaryKey))

	result, err := e.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", ConvertDBError(err))
	}
	return checkAffected(result.RowsAffected())
}

func checkAffected(n int64, err error) error {
	if err != nil {
		// Driver cannot report affected rows; treat the statement as applied.
		return nil
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
