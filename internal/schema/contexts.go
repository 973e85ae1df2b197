package schema

import (
	"strings"
)

// ContextView is the per-context slice of a filtered schema. Fields is nil
// for the meta context: a meta view never carries field definitions.
type ContextView struct {
	Fields        map[string]*Field `json:"fields,omitempty"`
	Details       []*DetailConfig   `json:"details,omitempty"`
	Actions       []*ActionConfig   `json:"actions,omitempty"`
	Relationships []*Relationship   `json:"relationships,omitempty"`
	TitleField    string            `json:"titleField,omitempty"`
}

// View is a reduced, context-filtered copy of a schema. The top-level
// metadata is context-independent; Contexts holds one entry per requested
// context. Views are always fresh copies: they never alias the canonical
// cached document.
type View struct {
	Model         string            `json:"model"`
	Table         string            `json:"table,omitempty"`
	PrimaryKey    string            `json:"primaryKey"`
	Title         string            `json:"title,omitempty"`
	SingularTitle string            `json:"singularTitle,omitempty"`
	Permissions   map[string]string `json:"permissions,omitempty"`
	DefaultSort   []SortSpec        `json:"defaultSort,omitempty"`

	Contexts map[string]*ContextView `json:"contexts"`

	// Related holds context-filtered schemas of referenced tables, keyed by
	// model name. Populated only by FilterWithRelated.
	Related map[string]*View `json:"relatedSchemas,omitempty"`
}

// Context returns the view for one context, or nil.
func (v *View) Context(name string) *ContextView {
	return v.Contexts[name]
}

// FilterForContext reduces a canonical schema to the view appropriate for the
// given context name or comma-joined set of names. An empty context yields
// the full view: every field with its validation block intact, plus
// everything the detail context carries.
func FilterForContext(doc *Schema, context string) *View {
	if context == "" {
		context = ContextFull
	}

	var names []string
	metaOnly := true
	for _, name := range strings.Split(context, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		names = append(names, name)
		if name != ContextMeta {
			metaOnly = false
		}
	}

	view := &View{
		Model:         doc.Model,
		PrimaryKey:    doc.PrimaryKey,
		Title:         doc.Title,
		SingularTitle: doc.SingularTitle,
		Contexts:      make(map[string]*ContextView),
	}
	if doc.Permissions != nil {
		view.Permissions = make(map[string]string, len(doc.Permissions))
		for k, p := range doc.Permissions {
			view.Permissions[k] = p
		}
	}
	// A meta-only request carries identity metadata, never table internals.
	if !metaOnly {
		view.Table = doc.Table
		if doc.DefaultSort != nil {
			view.DefaultSort = append([]SortSpec(nil), doc.DefaultSort...)
		}
	}

	for _, name := range names {
		view.Contexts[name] = buildContextView(doc, name)
	}

	return view
}

// buildContextView applies the per-context inclusion rules. The rules are
// asymmetric on purpose: list is opt-in so an unannotated column never leaks
// into a table view, form is opt-out so data entry keeps working without
// annotation, detail excludes only what is explicitly hidden, and meta
// carries no fields at all.
func buildContextView(doc *Schema, context string) *ContextView {
	cv := &ContextView{}

	switch context {
	case ContextMeta:
		return cv

	case ContextFull:
		cv.Fields = make(map[string]*Field, len(doc.Fields))
		for name, f := range doc.Fields {
			cv.Fields[name] = f.Clone()
		}
		attachDetailExtras(cv, doc)

	case ContextList:
		cv.Fields = make(map[string]*Field)
		for name, f := range doc.Fields {
			if includeInList(f) {
				c := f.Clone()
				c.Validation = nil
				cv.Fields[name] = c
			}
		}

	case ContextForm, ContextCreate, ContextEdit:
		cv.Fields = make(map[string]*Field)
		for name, f := range doc.Fields {
			if includeInForm(f, context) {
				// Form fields carry their validation block verbatim.
				cv.Fields[name] = f.Clone()
			}
		}

	case ContextDetail:
		cv.Fields = make(map[string]*Field)
		for name, f := range doc.Fields {
			if includeInDetail(f) {
				c := f.Clone()
				c.Validation = nil
				cv.Fields[name] = c
			}
		}
		attachDetailExtras(cv, doc)

	default:
		// Unknown context names produce an empty view rather than an error;
		// the caller asked for a slice the schema does not define.
		return cv
	}

	return cv
}

// attachDetailExtras copies the table-level extras the detail and full views
// carry: title field, nested detail listings, actions, and relationships.
func attachDetailExtras(cv *ContextView, doc *Schema) {
	cv.TitleField = doc.TitleField
	for _, d := range doc.Details {
		cv.Details = append(cv.Details, d.Clone())
	}
	for _, a := range doc.Actions {
		c := *a
		cv.Actions = append(cv.Actions, &c)
	}
	for _, r := range doc.Relationships {
		cv.Relationships = append(cv.Relationships, r.Clone())
	}
}

// includeInList is opt-in: the field must name the list context in showIn,
// or, with showIn absent, set listable=true explicitly.
func includeInList(f *Field) bool {
	if f.ShowIn != nil {
		return f.ShownIn(ContextList)
	}
	return f.Listable != nil && *f.Listable
}

// includeInForm is opt-out: with showIn absent the field is included unless
// it is explicitly non-editable, readonly, auto-increment, or computed.
// With showIn present, "form" covers both create and edit, and the specific
// context name is honored too.
func includeInForm(f *Field, context string) bool {
	if f.ShowIn != nil {
		if f.ShownIn(ContextForm) {
			return true
		}
		switch context {
		case ContextCreate:
			return f.ShownIn(ContextCreate)
		case ContextEdit:
			return f.ShownIn(ContextEdit)
		default:
			return f.ShownIn(ContextCreate) || f.ShownIn(ContextEdit)
		}
	}
	if f.Editable != nil && !*f.Editable {
		return false
	}
	return !f.Readonly && !f.AutoIncrement && !f.Computed
}

// includeInDetail keeps every field unless it is explicitly viewable=false.
// Readonly/editable flags survive on the copies so a detail page can still
// render edit affordances correctly.
func includeInDetail(f *Field) bool {
	if f.ShowIn != nil {
		return f.ShownIn(ContextDetail)
	}
	return f.Viewable == nil || *f.Viewable
}
