// Package entity turns a canonical table document into a bound data-access
// object: the right table and connection, a write-restricted column set,
// per-column type casts, and the document's timestamp and soft-delete
// semantics.
package entity

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/schemakit/schemakit/internal/schema"
)

// Entity is a ready-to-use data-access binding for one table. It is built
// from a canonical document and never mutates it.
type Entity struct {
	doc        *schema.Schema
	db         *sql.DB
	log        *zap.Logger
	table      string
	primaryKey string
	connection string
	timestamps bool

	// deletedAt is empty when soft delete is disabled. DeletedAtColumn is
	// the only accessor; nothing reads this field directly into SQL.
	deletedAt string

	writable map[string]bool
	casts    map[string]schema.CastType
}

// ConfigureOptions carries the request-time inputs that influence binding.
type ConfigureOptions struct {
	// Connection is the request-time connection qualifier. It outranks every
	// connection the document implies.
	Connection string
	// DefaultConnection is the system default, used when neither the request
	// nor the document names one.
	DefaultConnection string
}

// ResolveConnection applies the connection precedence, highest first: the
// request qualifier, the connection implied by the document's storage path,
// the document's own connection field, the system default.
func ResolveConnection(doc *schema.Schema, opts ConfigureOptions) string {
	connection := opts.DefaultConnection
	if doc.Connection != "" {
		connection = doc.Connection
	}
	if doc.SourceConnection != "" {
		connection = doc.SourceConnection
	}
	if opts.Connection != "" {
		connection = opts.Connection
	}
	return connection
}

// Configure builds a bound entity from a canonical document.
func Configure(doc *schema.Schema, db *sql.DB, opts ConfigureOptions, log *zap.Logger) *Entity {
	if log == nil {
		log = zap.NewNop()
	}

	connection := ResolveConnection(doc, opts)

	e := &Entity{
		doc:        doc,
		db:         db,
		log:        log,
		table:      doc.Table,
		primaryKey: doc.PrimaryKey,
		connection: connection,
		timestamps: doc.HasTimestamps(),
		writable:   make(map[string]bool),
		casts:      make(map[string]schema.CastType),
	}

	for _, name := range doc.WritableColumns() {
		e.writable[name] = true
	}
	for name, field := range doc.Fields {
		if cast := field.Type.Traits().Cast; cast != schema.CastNone {
			e.casts[name] = cast
		}
	}

	if col, ok := doc.DeletedAtColumn(); ok {
		e.deletedAt = col
	}

	return e
}

// Schema returns the canonical document the entity was configured from.
func (e *Entity) Schema() *schema.Schema {
	return e.doc
}

// Table returns the bound table name.
func (e *Entity) Table() string {
	return e.table
}

// PrimaryKey returns the primary key column.
func (e *Entity) PrimaryKey() string {
	return e.primaryKey
}

// Connection returns the resolved connection name.
func (e *Entity) Connection() string {
	return e.connection
}

// SetConnection overrides the resolved connection. The explicit override
// always wins over anything derived from the document.
func (e *Entity) SetConnection(name string) {
	e.connection = name
}

// HasTimestamps reports whether created_at/updated_at are maintained.
func (e *Entity) HasTimestamps() bool {
	return e.timestamps
}

// DeletedAtColumn returns the soft-delete column. ok is false when soft
// delete is disabled or the stored name is blank: a blank column name fed
// into a WHERE clause produces a query referencing a column named "" and
// fails at the database, so absence is reported as absence, never as "".
func (e *Entity) DeletedAtColumn() (string, bool) {
	if e.deletedAt == "" {
		return "", false
	}
	return e.deletedAt, true
}

// IsWritable reports whether callers may write the named column.
func (e *Entity) IsWritable(column string) bool {
	return e.writable[column]
}

// WritableColumns returns the writable column set.
func (e *Entity) WritableColumns() []string {
	cols := make([]string, 0, len(e.writable))
	for name := range e.writable {
		cols = append(cols, name)
	}
	return cols
}

// Cast returns the declared cast for a column, CastNone when untyped.
func (e *Entity) Cast(column string) schema.CastType {
	return e.casts[column]
}

// DB returns the bound database handle.
func (e *Entity) DB() *sql.DB {
	return e.db
}
