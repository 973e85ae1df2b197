// Package query builds and executes the relationship-aware listing queries:
// filtering, searching, sorting, pagination, and the direct / pivot /
// chained-pivot traversals declared by a table document.
package query

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/schemakit/schemakit/internal/schema"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpLessThan
	OpLike
	OpIn
	OpBetween
	OpIsNull
	OpIsNotNull
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpLessThan:
		return "<"
	case OpLike:
		return "LIKE"
	case OpIn:
		return "IN"
	case OpBetween:
		return "BETWEEN"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	default:
		return "UNKNOWN"
	}
}

// Condition represents one WHERE predicate on a column. Table, when set,
// qualifies the column for joined queries.
type Condition struct {
	Table    string
	Column   string
	Operator Operator
	Value    interface{}
	Or       bool
}

// conditionToSQL renders a condition with parameterized values.
func conditionToSQL(cond *Condition, paramCounter *int, args *[]interface{}) (string, error) {
	col := pq.QuoteIdentifier(cond.Column)
	if cond.Table != "" {
		col = pq.QuoteIdentifier(cond.Table) + "." + col
	}

	switch cond.Operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpLessThan, OpLike:
		*args = append(*args, cond.Value)
		sql := fmt.Sprintf("%s %s $%d", col, cond.Operator, *paramCounter)
		*paramCounter++
		return sql, nil

	case OpIn:
		values, ok := cond.Value.([]interface{})
		if !ok {
			return "", fmt.Errorf("IN operator requires []interface{} value")
		}
		if len(values) == 0 {
			// IN with an empty list never matches
			return "FALSE", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			*args = append(*args, v)
			placeholders[i] = fmt.Sprintf("$%d", *paramCounter)
			*paramCounter++
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), nil

	case OpBetween:
		values, ok := cond.Value.([]interface{})
		if !ok || len(values) != 2 {
			return "", fmt.Errorf("BETWEEN operator requires [min, max] values")
		}
		*args = append(*args, values[0], values[1])
		sql := fmt.Sprintf("%s BETWEEN $%d AND $%d", col, *paramCounter, *paramCounter+1)
		*paramCounter += 2
		return sql, nil

	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", col), nil

	case OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", col), nil

	default:
		return "", fmt.Errorf("unsupported operator: %v", cond.Operator)
	}
}

// filterCondition turns a request filter value into a condition using the
// field's declared filter type. The raw value arrives as a string or, for
// in/between, possibly as a slice.
func filterCondition(column, filterType string, raw interface{}) (*Condition, error) {
	switch filterType {
	case schema.FilterEquals, "":
		return &Condition{Column: column, Operator: OpEqual, Value: raw}, nil

	case schema.FilterNotEquals:
		return &Condition{Column: column, Operator: OpNotEqual, Value: raw}, nil

	case schema.FilterLike:
		return &Condition{Column: column, Operator: OpLike, Value: "%" + stringValue(raw) + "%"}, nil

	case schema.FilterStartsWith:
		return &Condition{Column: column, Operator: OpLike, Value: stringValue(raw) + "%"}, nil

	case schema.FilterEndsWith:
		return &Condition{Column: column, Operator: OpLike, Value: "%" + stringValue(raw)}, nil

	case schema.FilterIn:
		return &Condition{Column: column, Operator: OpIn, Value: listValue(raw)}, nil

	case schema.FilterBetween:
		values := listValue(raw)
		if len(values) != 2 {
			return nil, fmt.Errorf("between filter on %s requires exactly 2 values, got %d", column, len(values))
		}
		return &Condition{Column: column, Operator: OpBetween, Value: values}, nil

	case schema.FilterGreaterThan:
		return &Condition{Column: column, Operator: OpGreaterThan, Value: raw}, nil

	case schema.FilterLessThan:
		return &Condition{Column: column, Operator: OpLessThan, Value: raw}, nil

	default:
		return nil, fmt.Errorf("unknown filter type: %s", filterType)
	}
}

// stringValue renders a raw filter value as a string for LIKE patterns.
func stringValue(raw interface{}) string {
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", raw)
}

// listValue splits a raw filter value into a list: slices pass through,
// strings split on commas.
func listValue(raw interface{}) []interface{} {
	switch v := raw.(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case string:
		parts := strings.Split(v, ",")
		out := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []interface{}{raw}
	}
}
