package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no document exists for a model at either
// candidate path.
var ErrNotFound = errors.New("schema not found")

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ValidationError describes a structurally invalid document. Documents are
// operator-authored, so the message carries enough context to fix the file.
type ValidationError struct {
	Model   string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid schema")
	if e.Model != "" {
		b.WriteString(" ")
		b.WriteString(e.Model)
	}
	if e.Field != "" {
		b.WriteString(".")
		b.WriteString(e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// IsValidationError returns true if the error is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func validationErrorf(model, field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Model:   model,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}
