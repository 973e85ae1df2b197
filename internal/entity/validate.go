package entity

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"

	"github.com/schemakit/schemakit/internal/schema"
)

// Operation distinguishes create from update semantics during validation.
type Operation int

const (
	// OperationCreate represents a create operation
	OperationCreate Operation = iota
	// OperationUpdate represents an update operation
	OperationUpdate
)

// String returns the string representation of the operation
func (o Operation) String() string {
	switch o {
	case OperationCreate:
		return "create"
	case OperationUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Validate checks a record against the document's field rules. On create,
// required fields must be present; on update only the supplied fields are
// checked. Returns a *ValidationError collecting every failure.
func (e *Entity) Validate(record map[string]interface{}, op Operation) error {
	var fieldErrors []FieldError

	for name, field := range e.doc.Fields {
		value, present := record[name]

		required := field.Required || (field.Validation != nil && field.Validation.Required)
		if required && op == OperationCreate && (!present || isEmpty(value)) {
			fieldErrors = append(fieldErrors, FieldError{Field: name, Message: "is required"})
			continue
		}
		if !present || value == nil {
			continue
		}
		if required && op == OperationUpdate && isEmpty(value) {
			fieldErrors = append(fieldErrors, FieldError{Field: name, Message: "is required"})
			continue
		}

		fieldErrors = append(fieldErrors, validateFieldValue(name, field, value, record)...)
	}

	if len(fieldErrors) > 0 {
		return &ValidationError{Errors: fieldErrors}
	}
	return nil
}

// validateFieldValue applies type-implied and declared rules to one value.
func validateFieldValue(name string, field *schema.Field, value interface{}, record map[string]interface{}) []FieldError {
	var errs []FieldError

	v := field.Validation
	str, isString := value.(string)

	// Validated-by-convention types apply even without a rules block.
	if isString && str != "" {
		if field.Type == schema.TypeEmail || (v != nil && v.Email) {
			if _, err := mail.ParseAddress(str); err != nil {
				errs = append(errs, FieldError{Field: name, Message: "must be a valid email address"})
			}
		}
		if field.Type == schema.TypeURL || (v != nil && v.URL) {
			if u, err := url.Parse(str); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, FieldError{Field: name, Message: "must be a valid URL"})
			}
		}
	}

	if v == nil {
		return errs
	}

	if v.Length != nil && isString {
		if v.Length.Min != nil && len(str) < *v.Length.Min {
			errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("must be at least %d characters", *v.Length.Min)})
		}
		if v.Length.Max != nil && len(str) > *v.Length.Max {
			errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("must be at most %d characters", *v.Length.Max)})
		}
	}

	if v.Range != nil {
		if num, ok := toNumber(value); ok {
			if v.Range.Min != nil && num < *v.Range.Min {
				errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("must be at least %v", *v.Range.Min)})
			}
			if v.Range.Max != nil && num > *v.Range.Max {
				errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("must be at most %v", *v.Range.Max)})
			}
		}
	}

	if v.Pattern != "" && isString {
		re, err := regexp.Compile(v.Pattern)
		if err == nil && !re.MatchString(str) {
			errs = append(errs, FieldError{Field: name, Message: "has an invalid format"})
		}
	}

	if v.Matches != "" {
		other, ok := record[v.Matches]
		if !ok || other != value {
			errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("must match %s", v.Matches)})
		}
	}

	return errs
}

func isEmpty(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	return false
}

func toNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
