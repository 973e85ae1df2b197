package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// modelNamePattern restricts model names to word characters. The connection
// part of a qualified reference is not restricted: everything after the first
// @ belongs to it, further @ characters included.
var modelNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Reference is a parsed model reference, optionally qualified with a
// connection name ("users" or "users@db1").
type Reference struct {
	Model      string
	Connection string
}

// String renders the reference back to its wire form.
func (r Reference) String() string {
	if r.Connection == "" {
		return r.Model
	}
	return r.Model + "@" + r.Connection
}

// Key returns the cache key for the reference.
func (r Reference) Key() string {
	return r.Model + "@" + r.Connection
}

// ParseReference splits a qualified model reference into model and connection
// and validates the model name.
func ParseReference(ref string) (Reference, error) {
	model := ref
	connection := ""
	if i := strings.Index(ref, "@"); i >= 0 {
		model = ref[:i]
		connection = ref[i+1:]
	}
	if !modelNamePattern.MatchString(model) {
		return Reference{}, fmt.Errorf("invalid model name: %q", model)
	}
	return Reference{Model: model, Connection: connection}, nil
}
