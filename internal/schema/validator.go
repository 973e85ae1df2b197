package schema

// Validator checks the structural soundness of loaded documents. Validation
// runs once per load, before caching, so a cached document is always sound.
type Validator struct{}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate rejects malformed documents: missing model/table, unknown
// relationship types, and many-to-many relationships lacking join keys.
// It resolves the raw relationship type strings into their closed enum so
// nothing downstream branches on strings. Field types resolve during
// normalization, after shorthand spellings have collapsed.
func (v *Validator) Validate(doc *Schema, modelName string) error {
	if doc.Model == "" {
		return validationErrorf(modelName, "", "missing required key: model")
	}
	if doc.Table == "" {
		return validationErrorf(doc.Model, "", "missing required key: table")
	}

	for name, field := range doc.Fields {
		if field == nil {
			return validationErrorf(doc.Model, name, "field definition is empty")
		}
	}

	for _, rel := range doc.Relationships {
		if rel.Name == "" {
			return validationErrorf(doc.Model, "", "relationship missing name")
		}
		rt, err := ParseRelationType(rel.RawType)
		if err != nil {
			return validationErrorf(doc.Model, rel.Name, "%v", err)
		}
		rel.Type = rt

		if rel.Type == RelationManyToMany {
			switch {
			case rel.PivotTable == "":
				return validationErrorf(doc.Model, rel.Name, "many_to_many relationship requires pivotTable")
			case rel.ForeignKey == "":
				return validationErrorf(doc.Model, rel.Name, "many_to_many relationship requires foreignKey")
			case rel.RelatedKey == "":
				return validationErrorf(doc.Model, rel.Name, "many_to_many relationship requires relatedKey")
			}
		}

		if rel.Via != "" && doc.GetRelationship(rel.Via) == nil {
			return validationErrorf(doc.Model, rel.Name, "via references unknown relationship %q", rel.Via)
		}
	}

	for _, d := range doc.Details {
		if d.Model == "" {
			return validationErrorf(doc.Model, "", "detail entry missing model")
		}
	}

	return nil
}
