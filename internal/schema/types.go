// Package schema provides type definitions, loading, validation, and
// normalization for schemakit's table documents. A document describes one
// database table declaratively: its fields, per-context visibility, validation
// rules, and relationships to other tables.
package schema

import (
	"fmt"
)

// FieldType represents the built-in field types a document may declare.
type FieldType int

const (
	// Numeric types
	TypeInteger FieldType = iota
	TypeDecimal

	// Text types
	TypeString
	TypeText

	// Boolean
	TypeBoolean

	// Time types
	TypeDate
	TypeDateTime

	// Structured
	TypeJSON

	// Validated text
	TypeEmail
	TypeURL

	// Sensitive
	TypePassword
)

// String returns the string representation of the field type.
func (t FieldType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeDecimal:
		return "decimal"
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	case TypeJSON:
		return "json"
	case TypeEmail:
		return "email"
	case TypeURL:
		return "url"
	case TypePassword:
		return "password"
	default:
		return "unknown"
	}
}

// ParseFieldType converts a string to a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "integer", "int", "bigint":
		return TypeInteger, nil
	case "decimal", "float", "double":
		return TypeDecimal, nil
	case "string":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "date":
		return TypeDate, nil
	case "datetime", "timestamp":
		return TypeDateTime, nil
	case "json":
		return TypeJSON, nil
	case "email":
		return TypeEmail, nil
	case "url":
		return TypeURL, nil
	case "password":
		return TypePassword, nil
	default:
		return 0, fmt.Errorf("unknown field type: %s", s)
	}
}

// CastType identifies how a column value is cast on read and write.
type CastType int

const (
	CastNone CastType = iota
	CastInteger
	CastFloat
	CastBoolean
	CastJSON
	CastDate
	CastDateTime
)

// TypeTraits describes the query-facing behavior of one field type. The
// traits table is consulted once at normalization time rather than on every
// query.
type TypeTraits struct {
	Cast          CastType
	DefaultFilter string
	Sortable      bool
	Searchable    bool
	Sensitive     bool
}

var typeTraits = map[FieldType]TypeTraits{
	TypeInteger:  {Cast: CastInteger, DefaultFilter: FilterEquals, Sortable: true},
	TypeDecimal:  {Cast: CastFloat, DefaultFilter: FilterEquals, Sortable: true},
	TypeString:   {Cast: CastNone, DefaultFilter: FilterEquals, Sortable: true, Searchable: true},
	TypeText:     {Cast: CastNone, DefaultFilter: FilterLike, Searchable: true},
	TypeBoolean:  {Cast: CastBoolean, DefaultFilter: FilterEquals, Sortable: true},
	TypeDate:     {Cast: CastDate, DefaultFilter: FilterEquals, Sortable: true},
	TypeDateTime: {Cast: CastDateTime, DefaultFilter: FilterEquals, Sortable: true},
	TypeJSON:     {Cast: CastJSON, DefaultFilter: FilterEquals},
	TypeEmail:    {Cast: CastNone, DefaultFilter: FilterEquals, Sortable: true, Searchable: true},
	TypeURL:      {Cast: CastNone, DefaultFilter: FilterEquals, Searchable: true},
	TypePassword: {Cast: CastNone, DefaultFilter: FilterEquals, Sensitive: true},
}

// Traits returns the query-facing traits for the field type.
func (t FieldType) Traits() TypeTraits {
	return typeTraits[t]
}

// Filter type names accepted in a field's filterType attribute.
const (
	FilterEquals      = "equals"
	FilterNotEquals   = "not_equals"
	FilterLike        = "like"
	FilterStartsWith  = "starts_with"
	FilterEndsWith    = "ends_with"
	FilterIn          = "in"
	FilterBetween     = "between"
	FilterGreaterThan = "greater_than"
	FilterLessThan    = "less_than"
)

// Context names for filtered schema views. ContextFull is the unfiltered
// view an empty context request resolves to.
const (
	ContextList   = "list"
	ContextForm   = "form"
	ContextCreate = "create"
	ContextEdit   = "edit"
	ContextDetail = "detail"
	ContextMeta   = "meta"
	ContextFull   = "full"
)

// LengthRule constrains text length.
type LengthRule struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// RangeRule constrains numeric values.
type RangeRule struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Validation holds the declarative validation rules for one field. The form
// context carries this block verbatim so a form renderer can mirror the
// server-side rules.
type Validation struct {
	Required bool        `json:"required,omitempty"`
	Length   *LengthRule `json:"length,omitempty"`
	Email    bool        `json:"email,omitempty"`
	URL      bool        `json:"url,omitempty"`
	Range    *RangeRule  `json:"range,omitempty"`
	Pattern  string      `json:"pattern,omitempty"`
	Matches  string      `json:"matches,omitempty"`
	Unique   bool        `json:"unique,omitempty"`
}

// Clone returns a deep copy of the validation block.
func (v *Validation) Clone() *Validation {
	if v == nil {
		return nil
	}
	out := *v
	if v.Length != nil {
		l := *v.Length
		out.Length = &l
	}
	if v.Range != nil {
		r := *v.Range
		out.Range = &r
	}
	return &out
}

// Field describes one column: its type, labels, validation, and per-context
// visibility. The listable/editable/... flags are tri-state: nil means unset,
// which the context filter treats differently from an explicit false. When
// ShowIn is present it overrides the tri-state flags entirely.
type Field struct {
	Type          FieldType   `json:"-"`
	RawType       string      `json:"type"`
	Label         string      `json:"label,omitempty"`
	UI            string      `json:"ui,omitempty"`
	Required      bool        `json:"required,omitempty"`
	Readonly      bool        `json:"readonly,omitempty"`
	AutoIncrement bool        `json:"autoIncrement,omitempty"`
	Computed      bool        `json:"computed,omitempty"`
	Editable      *bool       `json:"editable,omitempty"`
	Listable      *bool       `json:"listable,omitempty"`
	Viewable      *bool       `json:"viewable,omitempty"`
	Filterable    *bool       `json:"filterable,omitempty"`
	Sortable      *bool       `json:"sortable,omitempty"`
	Searchable    *bool       `json:"searchable,omitempty"`
	ShowIn        []string    `json:"showIn,omitempty"`
	Validation    *Validation `json:"validation,omitempty"`
	FilterType    string      `json:"filterType,omitempty"`
	SortColumn    string      `json:"sortColumn,omitempty"`
	DateFormat    string      `json:"dateFormat,omitempty"`
	Default       interface{} `json:"default,omitempty"`
}

// ShownIn reports whether the field's explicit ShowIn set names the context.
// Returns false when ShowIn is absent.
func (f *Field) ShownIn(context string) bool {
	for _, c := range f.ShowIn {
		if c == context {
			return true
		}
	}
	return false
}

// IsSortable reports whether the field may appear in an ORDER BY. An explicit
// flag wins; otherwise the type traits decide.
func (f *Field) IsSortable() bool {
	if f.Sortable != nil {
		return *f.Sortable
	}
	return f.Type.Traits().Sortable
}

// IsSearchable reports whether the field participates in free-text search.
func (f *Field) IsSearchable() bool {
	if f.Searchable != nil {
		return *f.Searchable
	}
	return f.Type.Traits().Searchable
}

// IsFilterable reports whether request filters may target the field.
func (f *Field) IsFilterable() bool {
	if f.Filterable != nil {
		return *f.Filterable
	}
	return true
}

// EffectiveFilter returns the filter type applied when a request filters on
// this field.
func (f *Field) EffectiveFilter() string {
	if f.FilterType != "" {
		return f.FilterType
	}
	return f.Type.Traits().DefaultFilter
}

// Clone returns a deep copy of the field.
func (f *Field) Clone() *Field {
	if f == nil {
		return nil
	}
	out := *f
	out.Validation = f.Validation.Clone()
	if f.ShowIn != nil {
		out.ShowIn = append([]string(nil), f.ShowIn...)
	}
	out.Editable = cloneBool(f.Editable)
	out.Listable = cloneBool(f.Listable)
	out.Viewable = cloneBool(f.Viewable)
	out.Filterable = cloneBool(f.Filterable)
	out.Sortable = cloneBool(f.Sortable)
	out.Searchable = cloneBool(f.Searchable)
	return &out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// RelationType represents the declared kind of relationship traversal.
type RelationType int

const (
	RelationOneToMany RelationType = iota
	RelationManyToMany
)

// String returns the string representation of the relation type.
func (r RelationType) String() string {
	switch r {
	case RelationOneToMany:
		return "one_to_many"
	case RelationManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// ParseRelationType converts a string to a RelationType. belongs_to_many is
// accepted as a legacy alias for many_to_many.
func ParseRelationType(s string) (RelationType, error) {
	switch s {
	case "one_to_many", "has_many":
		return RelationOneToMany, nil
	case "many_to_many", "belongs_to_many":
		return RelationManyToMany, nil
	default:
		return 0, fmt.Errorf("unknown relationship type: %s", s)
	}
}

// Relationship declares a traversal from this table to another. For
// many_to_many, PivotTable/ForeignKey/RelatedKey must all be present. Via
// names another relationship on the same schema whose pivot is chained in
// front of this one, so permissions reachable only through roles declare
// via: "roles" instead of relying on a hardcoded relation name.
type Relationship struct {
	Name       string       `json:"name"`
	Type       RelationType `json:"-"`
	RawType    string       `json:"type"`
	PivotTable string       `json:"pivotTable,omitempty"`
	ForeignKey string       `json:"foreignKey,omitempty"`
	RelatedKey string       `json:"relatedKey,omitempty"`
	Via        string       `json:"via,omitempty"`
}

// Clone returns a copy of the relationship.
func (r *Relationship) Clone() *Relationship {
	if r == nil {
		return nil
	}
	out := *r
	return &out
}

// DetailConfig exposes a related table as a nested listing endpoint on the
// base table's detail page.
type DetailConfig struct {
	Model      string   `json:"model"`
	ForeignKey string   `json:"foreignKey,omitempty"`
	ListFields []string `json:"listFields,omitempty"`
	Title      string   `json:"title,omitempty"`
}

// Clone returns a copy of the detail config.
func (d *DetailConfig) Clone() *DetailConfig {
	if d == nil {
		return nil
	}
	out := *d
	if d.ListFields != nil {
		out.ListFields = append([]string(nil), d.ListFields...)
	}
	return &out
}

// ActionConfig declares a row or bulk action a UI may render for the table.
type ActionConfig struct {
	Name       string `json:"name"`
	Label      string `json:"label,omitempty"`
	Type       string `json:"type,omitempty"`
	Icon       string `json:"icon,omitempty"`
	Confirm    bool   `json:"confirm,omitempty"`
	Permission string `json:"permission,omitempty"`
}

// SortSpec is one entry of a document's default sort order. The document
// carries an ordered list rather than a map so the order survives JSON.
type SortSpec struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Schema is the canonical in-memory form of one table document. After
// normalization the engine treats it as read-only; consumers receive filtered
// copies, never the cached object itself.
type Schema struct {
	Model            string            `json:"model"`
	Table            string            `json:"table"`
	PrimaryKey       string            `json:"primaryKey,omitempty"`
	Connection       string            `json:"connection,omitempty"`
	Timestamps       *bool             `json:"timestamps,omitempty"`
	SoftDelete       *bool             `json:"softDelete,omitempty"`
	SoftDeleteColumn string            `json:"softDeleteColumn,omitempty"`
	Title            string            `json:"title,omitempty"`
	SingularTitle    string            `json:"singularTitle,omitempty"`
	TitleField       string            `json:"titleField,omitempty"`
	DefaultSort      []SortSpec        `json:"defaultSort,omitempty"`
	Permissions      map[string]string `json:"permissions,omitempty"`
	Fields           map[string]*Field `json:"fields,omitempty"`
	Relationships    []*Relationship   `json:"relationships,omitempty"`
	Details          []*DetailConfig   `json:"details,omitempty"`
	Actions          []*ActionConfig   `json:"actions,omitempty"`

	// SourceConnection is the connection subdirectory the document was loaded
	// from, when the loader resolved a connection-qualified path. Not part of
	// the document itself.
	SourceConnection string `json:"-"`
}

// HasTimestamps reports whether created_at/updated_at are maintained.
// Defaults to true when the document leaves the key absent.
func (s *Schema) HasTimestamps() bool {
	if s.Timestamps == nil {
		return true
	}
	return *s.Timestamps
}

// IsSoftDelete reports whether rows are soft-deleted. Defaults to false.
func (s *Schema) IsSoftDelete() bool {
	if s.SoftDelete == nil {
		return false
	}
	return *s.SoftDelete
}

// DeletedAtColumn returns the soft-delete column name. ok is false whenever
// soft delete is disabled or the stored column name is blank; callers must
// never build a predicate on a zero-length column name.
func (s *Schema) DeletedAtColumn() (string, bool) {
	if !s.IsSoftDelete() {
		return "", false
	}
	col := s.SoftDeleteColumn
	if col == "" {
		col = "deleted_at"
	}
	return col, true
}

// GetField returns the named field, or nil.
func (s *Schema) GetField(name string) *Field {
	return s.Fields[name]
}

// GetRelationship returns the relationship with the given name, or nil.
func (s *Schema) GetRelationship(name string) *Relationship {
	for _, rel := range s.Relationships {
		if rel.Name == name {
			return rel
		}
	}
	return nil
}

// GetDetail returns the detail config whose model matches name, or nil.
func (s *Schema) GetDetail(name string) *DetailConfig {
	for _, d := range s.Details {
		if d.Model == name {
			return d
		}
	}
	return nil
}

// WritableColumns returns every field name a caller may write: everything
// except autoIncrement, readonly, and computed fields.
func (s *Schema) WritableColumns() []string {
	cols := make([]string, 0, len(s.Fields))
	for name, f := range s.Fields {
		if f.AutoIncrement || f.Readonly || f.Computed {
			continue
		}
		cols = append(cols, name)
	}
	return cols
}

// SearchableFields returns field names participating in free-text search.
func (s *Schema) SearchableFields() []string {
	var out []string
	for name, f := range s.Fields {
		if f.IsSearchable() {
			out = append(out, name)
		}
	}
	return out
}

// Clone returns a deep copy of the schema. The cache hands out the canonical
// object; anything that mutates must clone first.
func (s *Schema) Clone() *Schema {
	out := *s
	out.Timestamps = cloneBool(s.Timestamps)
	out.SoftDelete = cloneBool(s.SoftDelete)
	if s.DefaultSort != nil {
		out.DefaultSort = append([]SortSpec(nil), s.DefaultSort...)
	}
	if s.Permissions != nil {
		out.Permissions = make(map[string]string, len(s.Permissions))
		for k, v := range s.Permissions {
			out.Permissions[k] = v
		}
	}
	if s.Fields != nil {
		out.Fields = make(map[string]*Field, len(s.Fields))
		for k, v := range s.Fields {
			out.Fields[k] = v.Clone()
		}
	}
	if s.Relationships != nil {
		out.Relationships = make([]*Relationship, len(s.Relationships))
		for i, r := range s.Relationships {
			out.Relationships[i] = r.Clone()
		}
	}
	if s.Details != nil {
		out.Details = make([]*DetailConfig, len(s.Details))
		for i, d := range s.Details {
			out.Details[i] = d.Clone()
		}
	}
	if s.Actions != nil {
		out.Actions = make([]*ActionConfig, len(s.Actions))
		for i, a := range s.Actions {
			c := *a
			out.Actions[i] = &c
		}
	}
	return &out
}
