package condition

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure returned by this package wraps exactly one of
// them, so callers can branch with errors.Is.
var (
	ErrUnknownOperator   = errors.New("unknown operator")
	ErrFieldNotFound     = errors.New("field not found")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrEmptyGroup        = errors.New("empty group")
	ErrInvalidExpression = errors.New("invalid expression")
	ErrDepthExceeded     = errors.New("maximum expression depth exceeded")
	ErrUnsupportedValue  = errors.New("unsupported value")
)

// EvaluationError carries the kind of failure plus whatever context was
// available where it happened.
type EvaluationError struct {
	Kind  error
	Op    string
	Field string
	Tag   string
	Left  Value
	Right Value
	Path  string
	Msg   string
}

func (e *EvaluationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())

	switch {
	case errors.Is(e.Kind, ErrUnknownOperator):
		fmt.Fprintf(&b, " %q", e.Op)
	case errors.Is(e.Kind, ErrFieldNotFound):
		fmt.Fprintf(&b, " %q", e.Field)
	case errors.Is(e.Kind, ErrTypeMismatch):
		fmt.Fprintf(&b, ": cannot apply %s to %s and %s", e.Op, e.Left.Kind(), e.Right.Kind())
	case errors.Is(e.Kind, ErrInvalidExpression):
		if e.Tag != "" {
			fmt.Fprintf(&b, ": unrecognized tag %q", e.Tag)
		}
	}

	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " (at %s)", e.Path)
	}
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	return e.Kind
}

func unknownOperator(token string) error {
	return &EvaluationError{Kind: ErrUnknownOperator, Op: token}
}

func fieldNotFound(field string) error {
	return &EvaluationError{Kind: ErrFieldNotFound, Field: field}
}

func typeMismatch(op Operator, left, right Value) error {
	return &EvaluationError{Kind: ErrTypeMismatch, Op: op.String(), Left: left, Right: right}
}

func unsupportedComparison(op Operator, left, right Value) error {
	return &EvaluationError{Kind: ErrUnsupportedValue, Op: op.String(), Left: left, Right: right,
		Msg: fmt.Sprintf("cannot apply %s to %s and %s", op, left.Kind(), right.Kind())}
}

func invalidExpression(tag, msg string) error {
	return &EvaluationError{Kind: ErrInvalidExpression, Tag: tag, Msg: msg}
}

// withPath annotates err with the location in the expression tree where it
// surfaced. The innermost location wins.
func withPath(err error, path string) error {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) && evalErr.Path == "" {
		evalErr.Path = path
	}
	return err
}

// KindOf returns a stable, low-cardinality label for err, suitable for
// metrics and event payloads.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownOperator):
		return "unknown_operator"
	case errors.Is(err, ErrFieldNotFound):
		return "field_not_found"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrEmptyGroup):
		return "empty_group"
	case errors.Is(err, ErrInvalidExpression):
		return "invalid_expression"
	case errors.Is(err, ErrDepthExceeded):
		return "depth_exceeded"
	case errors.Is(err, ErrUnsupportedValue):
		return "unsupported_value"
	default:
		return "internal"
	}
}
