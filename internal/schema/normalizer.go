package schema

// booleanSpellings maps the legacy boolean sub-type spellings to the UI hint
// each implies. All collapse to type=boolean.
var booleanSpellings = map[string]string{
	"toggle":         "toggle",
	"checkbox":       "checkbox",
	"yes_no":         "yes_no",
	"boolean_select": "select",
}

// Normalizer rewrites shorthand and legacy notations into one canonical form
// so every downstream consumer sees a single spelling of each concept.
type Normalizer struct{}

// NewNormalizer creates a normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize canonicalizes the document in place:
//
//   - boolean sub-type spellings collapse into type=boolean plus a ui hint,
//     an explicit ui value on the source field winning over the derived one;
//   - raw field type strings resolve to the FieldType enum and the per-type
//     filter default materializes, so queries never branch on type strings;
//   - every field lacking an explicit showIn gets one derived: all four
//     contexts for ordinary fields, sensitive types dropped from detail.
//
// Explicit showIn arrays are left untouched. Normalize runs once per load,
// before the document is cached.
func (n *Normalizer) Normalize(doc *Schema) error {
	for name, field := range doc.Fields {
		if ui, ok := booleanSpellings[field.RawType]; ok {
			field.RawType = "boolean"
			if field.UI == "" {
				field.UI = ui
			}
		}

		ft, err := ParseFieldType(field.RawType)
		if err != nil {
			return validationErrorf(doc.Model, name, "%v", err)
		}
		field.Type = ft
		field.RawType = ft.String()

		if field.FilterType == "" {
			field.FilterType = ft.Traits().DefaultFilter
		}

		if field.ShowIn == nil {
			field.ShowIn = deriveShowIn(field)
		}
	}
	return nil
}

// deriveShowIn computes the visibility set for a field that declared none.
// Ordinary fields appear everywhere; sensitive-by-convention types are kept
// out of the detail context.
func deriveShowIn(field *Field) []string {
	contexts := []string{ContextList, ContextForm, ContextDetail, ContextMeta}
	if field.Type.Traits().Sensitive {
		return []string{ContextList, ContextForm, ContextMeta}
	}
	return contexts
}
