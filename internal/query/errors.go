package query

import "errors"

var (
	// ErrRelationshipMisconfigured is returned when a relationship referenced
	// for traversal lacks the join keys it needs. Raised before any SQL is
	// built; the engine never emits a query with a blank join column.
	ErrRelationshipMisconfigured = errors.New("relationship misconfigured")

	// ErrUnknownRelation is returned when a nested listing names a relation
	// the base document does not expose in details[].
	ErrUnknownRelation = errors.New("unknown relation")
)

// IsMisconfigured returns true if the error is ErrRelationshipMisconfigured.
func IsMisconfigured(err error) bool {
	return errors.Is(err, ErrRelationshipMisconfigured)
}
