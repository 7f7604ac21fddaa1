package condition

import (
	"fmt"
	"strings"
)

// Operator is one of the fixed comparison operators.
type Operator int

const (
	OpEqual Operator = iota + 1
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpIn
	OpNotIn
)

var operatorTokens = map[string]Operator{
	"=":      OpEqual,
	"!=":     OpNotEqual,
	"<>":     OpNotEqual,
	">":      OpGreater,
	">=":     OpGreaterEqual,
	"<":      OpLess,
	"<=":     OpLessEqual,
	"IN":     OpIn,
	"NOT IN": OpNotIn,
}

// ParseOperator maps a token to its Operator. Matching is case-insensitive and
// tolerates extra whitespace, so "not  in" is NOT IN.
func ParseOperator(token string) (Operator, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(token), " "))
	if op, ok := operatorTokens[normalized]; ok {
		return op, nil
	}
	return 0, unknownOperator(token)
}

func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	default:
		return fmt.Sprintf("Operator(%d)", int(o))
	}
}

// Compare applies op with the field value on the left and the resolved
// condition value on the right.
//
// A Missing right-hand side (a dangling reference) never satisfies any
// operator, NOT IN and != included. Ordering against NaN is always false.
// Opaque values on either side fail with ErrUnsupportedValue.
func Compare(op Operator, left, right Value) (bool, error) {
	if op < OpEqual || op > OpNotIn {
		return false, unknownOperator(op.String())
	}
	if right.IsMissing() {
		return false, nil
	}
	if left.kind == KindOpaque || right.kind == KindOpaque {
		return false, unsupportedComparison(op, left, right)
	}

	switch op {
	case OpEqual:
		return left.Equal(right), nil
	case OpNotEqual:
		return !left.Equal(right), nil
	case OpGreater:
		c, ordered, err := order(op, left, right)
		return ordered && c > 0, err
	case OpGreaterEqual:
		c, ordered, err := order(op, left, right)
		return ordered && c >= 0, err
	case OpLess:
		c, ordered, err := order(op, left, right)
		return ordered && c < 0, err
	case OpLessEqual:
		c, ordered, err := order(op, left, right)
		return ordered && c <= 0, err
	case OpIn:
		return member(op, left, right)
	case OpNotIn:
		in, err := member(op, left, right)
		return !in && err == nil, err
	default:
		return false, unknownOperator(op.String())
	}
}

// CompareToken parses token and applies it.
func CompareToken(token string, left, right Value) (bool, error) {
	op, err := ParseOperator(token)
	if err != nil {
		return false, err
	}
	return Compare(op, left, right)
}

// order returns -1, 0 or 1. Only number/number and string/string pairs are
// ordered; ordered is false when a NaN takes part.
func order(op Operator, left, right Value) (c int, ordered bool, err error) {
	switch {
	case left.kind == KindNumber && right.kind == KindNumber:
		c, ordered = compareNumbers(left, right)
		return c, ordered, nil
	case left.kind == KindString && right.kind == KindString:
		return strings.Compare(left.s, right.s), true, nil
	default:
		return 0, false, typeMismatch(op, left, right)
	}
}

func member(op Operator, left, right Value) (bool, error) {
	if right.kind != KindList {
		return false, typeMismatch(op, left, right)
	}
	for _, item := range right.list {
		if left.Equal(item) {
			return true, nil
		}
	}
	return false, nil
}
