package entity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/schemakit/schemakit/internal/schema"
)

// Create validates and inserts a record, returning the stored row. Only
// writable columns are taken from data; everything else is silently dropped
// so a caller cannot write readonly or computed columns.
func (e *Entity) Create(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	record := e.pickWritable(data)

	if err := e.populateAutoValues(record, OperationCreate); err != nil {
		return nil, err
	}

	if err := e.Validate(record, OperationCreate); err != nil {
		return nil, err
	}

	if err := e.hashPasswordFields(record); err != nil {
		return nil, err
	}

	columns := sortedKeys(record)
	if len(columns) == 0 {
		return nil, fmt.Errorf("no fields to insert")
	}

	placeholders := make([]string, len(columns))
	values := make([]interface{}, len(columns))
	quoted := make([]string, len(columns))
	for i, col := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		values[i] = record[col]
		quoted[i] = pq.QuoteIdentifier(col)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		pq.QuoteIdentifier(e.table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	rows, err := e.db.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", ConvertDBError(err))
	}
	defer rows.Close()

	inserted, err := scanFirstRow(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan inserted record: %w", ConvertDBError(err))
	}
	return inserted, nil
}

// pickWritable copies the writable subset of data, never mutating the input.
func (e *Entity) pickWritable(data map[string]interface{}) map[string]interface{} {
	record := make(map[string]interface{})
	for k, v := range data {
		if e.writable[k] {
			record[k] = v
		}
	}
	return record
}

// populateAutoValues fills the generated primary key, defaults, and
// timestamp columns.
func (e *Entity) populateAutoValues(record map[string]interface{}, op Operation) error {
	now := time.Now().UTC()

	if op == OperationCreate {
		if pk := e.doc.GetField(e.primaryKey); pk != nil && !pk.AutoIncrement {
			if _, exists := record[e.primaryKey]; !exists && pk.Type == schema.TypeString {
				record[e.primaryKey] = uuid.NewString()
			}
		}

		for name, field := range e.doc.Fields {
			if !e.writable[name] || field.Default == nil {
				continue
			}
			if _, exists := record[name]; !exists {
				record[name] = field.Default
			}
		}

		if e.timestamps {
			record["created_at"] = now
			record["updated_at"] = now
		}
	}

	if op == OperationUpdate && e.timestamps {
		record["updated_at"] = now
	}

	return nil
}

// hashPasswordFields bcrypt-hashes every password-typed value in place. A
// plaintext password never reaches the database.
func (e *Entity) hashPasswordFields(record map[string]interface{}) error {
	for name, field := range e.doc.Fields {
		if field.Type != schema.TypePassword {
			continue
		}
		raw, ok := record[name].(string)
		if !ok || raw == "" {
			continue
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", name, err)
		}
		record[name] = string(hashed)
	}
	return nil
}

func sortedKeys(record map[string]interface{}) []string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
