package condition

import (
	"fmt"
	"strings"
)

// Link joins the children of a group.
type Link string

const (
	LinkAnd Link = "AND"
	LinkOr  Link = "OR"
)

// DefaultMaxDepth bounds the nesting of expressions accepted by Evaluate and
// by the decoders.
const DefaultMaxDepth = 64

// Expression is either a leaf holding a FieldCondition or a group joining
// child expressions with AND/OR.
type Expression struct {
	Leaf     *FieldCondition
	Link     Link
	Children []*Expression
}

// Leaf wraps a field condition into an expression.
func Leaf(fc *FieldCondition) *Expression {
	return &Expression{Leaf: fc}
}

// And groups children with AND.
func And(children ...*Expression) *Expression {
	return &Expression{Link: LinkAnd, Children: children}
}

// Or groups children with OR.
func Or(children ...*Expression) *Expression {
	return &Expression{Link: LinkOr, Children: children}
}

// IsLeaf reports whether e is a field condition.
func (e *Expression) IsLeaf() bool {
	return e != nil && e.Leaf != nil
}

// Warnings collects decode-time warnings from every leaf.
func (e *Expression) Warnings() []string {
	if e == nil {
		return nil
	}
	if e.Leaf != nil {
		return e.Leaf.Warnings()
	}
	var out []string
	for _, child := range e.Children {
		out = append(out, child.Warnings()...)
	}
	return out
}

// Fields returns the fields under test, in tree order, without duplicates.
func (e *Expression) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(*Expression)
	walk = func(n *Expression) {
		if n == nil {
			return
		}
		if n.Leaf != nil {
			if !seen[n.Leaf.Field] {
				seen[n.Leaf.Field] = true
				out = append(out, n.Leaf.Field)
			}
			return
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(e)
	return out
}

func (e *Expression) String() string {
	if e == nil {
		return "<nil>"
	}
	if e.Leaf != nil {
		return e.Leaf.String()
	}
	parts := make([]string, len(e.Children))
	for i, child := range e.Children {
		parts[i] = child.String()
		if !child.IsLeaf() {
			parts[i] = "(" + parts[i] + ")"
		}
	}
	return strings.Join(parts, " "+string(e.Link)+" ")
}

// Evaluator evaluates expressions with a bounded nesting depth. It holds no
// per-call state and is safe for concurrent use.
type Evaluator struct {
	maxDepth int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMaxDepth overrides DefaultMaxDepth. Values below 1 are ignored.
func WithMaxDepth(depth int) Option {
	return func(e *Evaluator) {
		if depth > 0 {
			e.maxDepth = depth
		}
	}
}

// NewEvaluator creates an evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxDepth returns the configured depth bound.
func (ev *Evaluator) MaxDepth() int {
	return ev.maxDepth
}

var defaultEvaluator = NewEvaluator()

// Evaluate evaluates expr against record using DefaultMaxDepth.
func Evaluate(record Record, expr *Expression) (bool, error) {
	return defaultEvaluator.Evaluate(record, expr)
}

// Evaluate reports whether record satisfies expr. Groups short-circuit in
// child order; the first error aborts the whole evaluation.
func (ev *Evaluator) Evaluate(record Record, expr *Expression) (bool, error) {
	return ev.eval(record, expr, 1, "$")
}

func (ev *Evaluator) eval(record Record, expr *Expression, depth int, path string) (bool, error) {
	if depth > ev.maxDepth {
		return false, &EvaluationError{
			Kind: ErrDepthExceeded,
			Msg:  fmt.Sprintf("limit is %d", ev.maxDepth),
			Path: path,
		}
	}
	if expr == nil {
		return false, withPath(invalidExpression("", "nil expression"), path)
	}
	if expr.Leaf != nil {
		ok, err := EvaluateField(record, expr.Leaf)
		return ok, withPath(err, path)
	}

	var stopOn bool
	switch expr.Link {
	case LinkAnd:
		stopOn = false
	case LinkOr:
		stopOn = true
	default:
		return false, withPath(invalidExpression(string(expr.Link), ""), path)
	}
	if len(expr.Children) == 0 {
		return false, &EvaluationError{Kind: ErrEmptyGroup, Tag: string(expr.Link), Path: path}
	}

	for i, child := range expr.Children {
		ok, err := ev.eval(record, child, depth+1, fmt.Sprintf("%s.%s[%d]", path, expr.Link, i))
		if err != nil {
			return false, err
		}
		if ok == stopOn {
			return stopOn, nil
		}
	}
	return !stopOn, nil
}
