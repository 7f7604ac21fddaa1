package condition

import (
	"fmt"
	"strings"
)

// Comparison is a single (operator, operand) pair.
type Comparison struct {
	Op      Operator
	Operand Operand
}

// Cmp builds a Comparison.
func Cmp(op Operator, operand Operand) Comparison {
	return Comparison{Op: op, Operand: operand}
}

// FieldCondition tests a single field. Each group is an AND of comparisons and
// the groups are OR-ed together. A condition written as one operator map has
// exactly one group and AnyOf unset.
type FieldCondition struct {
	Field  string
	Groups [][]Comparison
	AnyOf  bool

	// Ignored lists the extra fields that were declared alongside Field in
	// the same condition object. They are never evaluated.
	Ignored []string
}

// All builds a field condition whose comparisons must all hold.
func All(field string, comparisons ...Comparison) *FieldCondition {
	return &FieldCondition{Field: field, Groups: [][]Comparison{comparisons}}
}

// Any builds a field condition that holds when at least one group holds.
func Any(field string, groups ...[]Comparison) *FieldCondition {
	return &FieldCondition{Field: field, Groups: groups, AnyOf: true}
}

// Warnings describes parts of the condition that were dropped at decode time.
func (fc *FieldCondition) Warnings() []string {
	if len(fc.Ignored) == 0 {
		return nil
	}
	return []string{fmt.Sprintf(
		"condition on %q also declares %s; only the first field is evaluated",
		fc.Field, strings.Join(quoteAll(fc.Ignored), ", "),
	)}
}

// EvaluateField evaluates fc against record. The field under test must exist
// in the record, unlike referenced fields which degrade to no-match.
func EvaluateField(record Record, fc *FieldCondition) (bool, error) {
	if fc == nil {
		return false, invalidExpression("", "nil field condition")
	}
	left, ok := record[fc.Field]
	if !ok {
		return false, fieldNotFound(fc.Field)
	}

	for _, group := range fc.Groups {
		matched, err := evaluateGroup(record, left, group)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	// An empty OR list has no group that can hold.
	return false, nil
}

func evaluateGroup(record Record, left Value, group []Comparison) (bool, error) {
	for _, c := range group {
		ok, err := Compare(c.Op, left, Resolve(c.Operand, record))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (fc *FieldCondition) String() string {
	groups := make([]string, len(fc.Groups))
	for i, group := range fc.Groups {
		terms := make([]string, len(group))
		for j, c := range group {
			terms[j] = fmt.Sprintf("%s %s %s", fc.Field, c.Op, c.Operand)
		}
		groups[i] = strings.Join(terms, " AND ")
		if len(group) == 0 {
			groups[i] = "true"
		}
		if len(group) > 1 && len(fc.Groups) > 1 {
			groups[i] = "(" + groups[i] + ")"
		}
	}
	switch len(groups) {
	case 0:
		return "false"
	case 1:
		return groups[0]
	}
	return "(" + strings.Join(groups, " OR ") + ")"
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}
