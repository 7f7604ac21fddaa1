package condition

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keys of the explicit operand forms. {"$ref": "b"} is a reference without
// relying on bracket syntax and {"$literal": "[b]"} keeps a bracketed string
// literal.
const (
	refKey     = "$ref"
	literalKey = "$literal"
)

// ParseExpression decodes an expression from YAML or JSON text. Key order is
// taken from the document, which matters for condition objects that declare
// more than one field.
func ParseExpression(data []byte, opts ...Option) (*Expression, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, invalidExpression("", fmt.Sprintf("failed to parse document: %v", err))
	}
	return newDecoder(opts).expression(&node, 1, "$")
}

// ExpressionFromValue decodes an expression that was already unmarshalled into
// Go maps and slices. Go maps carry no order, so keys are visited in
// lexicographic order.
func ExpressionFromValue(v interface{}, opts ...Option) (*Expression, error) {
	node, err := toNode(v)
	if err != nil {
		return nil, err
	}
	return newDecoder(opts).expression(node, 1, "$")
}

// ParseFieldCondition decodes a single {field: condition} object from YAML or
// JSON text.
func ParseFieldCondition(data []byte) (*FieldCondition, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, invalidExpression("", fmt.Sprintf("failed to parse document: %v", err))
	}
	return newDecoder(nil).fieldCondition(&node, "$")
}

// FieldConditionFromValue decodes a single {field: condition} map.
func FieldConditionFromValue(v interface{}) (*FieldCondition, error) {
	node, err := toNode(v)
	if err != nil {
		return nil, err
	}
	return newDecoder(nil).fieldCondition(node, "$")
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Expression) UnmarshalYAML(value *yaml.Node) error {
	decoded, err := newDecoder(nil).expression(value, 1, "$")
	if err != nil {
		return err
	}
	*e = *decoded
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. JSON documents are valid YAML, so
// both formats share one decoder.
func (e *Expression) UnmarshalJSON(data []byte) error {
	decoded, err := ParseExpression(data)
	if err != nil {
		return err
	}
	*e = *decoded
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (fc *FieldCondition) UnmarshalYAML(value *yaml.Node) error {
	decoded, err := newDecoder(nil).fieldCondition(value, "$")
	if err != nil {
		return err
	}
	*fc = *decoded
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (fc *FieldCondition) UnmarshalJSON(data []byte) error {
	decoded, err := ParseFieldCondition(data)
	if err != nil {
		return err
	}
	*fc = *decoded
	return nil
}

type decoder struct {
	maxDepth int
}

func newDecoder(opts []Option) *decoder {
	ev := NewEvaluator(opts...)
	return &decoder{maxDepth: ev.maxDepth}
}

func toNode(v interface{}) (*yaml.Node, error) {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, invalidExpression("", fmt.Sprintf("failed to encode value: %v", err))
	}
	return &node, nil
}

// unwrap skips document and alias nodes.
func unwrap(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

func (d *decoder) expression(n *yaml.Node, depth int, path string) (*Expression, error) {
	if depth > d.maxDepth {
		return nil, &EvaluationError{Kind: ErrDepthExceeded, Msg: fmt.Sprintf("limit is %d", d.maxDepth), Path: path}
	}
	n = unwrap(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, withPath(invalidExpression("", "expression must be a mapping"), path)
	}
	if len(n.Content) == 0 {
		return nil, withPath(invalidExpression("", "expression is empty"), path)
	}

	key := n.Content[0].Value
	link := Link(strings.ToUpper(key))
	if link != LinkAnd && link != LinkOr {
		fc, err := d.fieldCondition(n, path)
		if err != nil {
			return nil, err
		}
		return Leaf(fc), nil
	}

	if len(n.Content) > 2 {
		return nil, withPath(invalidExpression(key, "a group must be the only key of its object"), path)
	}
	seq := unwrap(n.Content[1])
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return nil, withPath(invalidExpression(key, "group members must be a list"), path)
	}

	group := &Expression{Link: link, Children: make([]*Expression, 0, len(seq.Content))}
	for i, item := range seq.Content {
		child, err := d.expression(item, depth+1, fmt.Sprintf("%s.%s[%d]", path, link, i))
		if err != nil {
			return nil, err
		}
		group.Children = append(group.Children, child)
	}
	return group, nil
}

// fieldCondition decodes {field: {op: operand}} or {field: [{op: operand}]}.
// Only the first key is decoded; the remaining keys are recorded as ignored.
func (d *decoder) fieldCondition(n *yaml.Node, path string) (*FieldCondition, error) {
	n = unwrap(n)
	if n == nil || n.Kind != yaml.MappingNode || len(n.Content) == 0 {
		return nil, withPath(invalidExpression("", "field condition must be a non-empty mapping"), path)
	}

	fc := &FieldCondition{Field: n.Content[0].Value}
	for i := 2; i < len(n.Content); i += 2 {
		fc.Ignored = append(fc.Ignored, n.Content[i].Value)
	}

	fieldPath := path + "." + fc.Field
	body := unwrap(n.Content[1])
	if body == nil {
		return nil, withPath(invalidExpression("", "missing condition"), fieldPath)
	}

	switch body.Kind {
	case yaml.MappingNode:
		group, err := d.comparisons(body, fieldPath)
		if err != nil {
			return nil, err
		}
		fc.Groups = [][]Comparison{group}
	case yaml.SequenceNode:
		fc.AnyOf = true
		fc.Groups = make([][]Comparison, 0, len(body.Content))
		for i, item := range body.Content {
			item = unwrap(item)
			itemPath := fmt.Sprintf("%s[%d]", fieldPath, i)
			if item == nil || item.Kind != yaml.MappingNode {
				return nil, withPath(invalidExpression("", "each alternative must be an operator mapping"), itemPath)
			}
			group, err := d.comparisons(item, itemPath)
			if err != nil {
				return nil, err
			}
			fc.Groups = append(fc.Groups, group)
		}
	default:
		return nil, withPath(invalidExpression("", "condition must be an operator mapping or a list of them"), fieldPath)
	}
	return fc, nil
}

func (d *decoder) comparisons(n *yaml.Node, path string) ([]Comparison, error) {
	out := make([]Comparison, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		token := n.Content[i].Value
		op, err := ParseOperator(token)
		if err != nil {
			return nil, withPath(err, path)
		}
		operand, err := d.operand(n.Content[i+1], path+"."+token)
		if err != nil {
			return nil, err
		}
		out = append(out, Comparison{Op: op, Operand: operand})
	}
	return out, nil
}

func (d *decoder) operand(n *yaml.Node, path string) (Operand, error) {
	n = unwrap(n)
	if n == nil {
		return Lit(Null()), nil
	}

	switch n.Kind {
	case yaml.SequenceNode:
		items := make([]Operand, 0, len(n.Content))
		for i, item := range n.Content {
			o, err := d.operand(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return Operand{}, err
			}
			items = append(items, o)
		}
		return Items(items...), nil

	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return Operand{}, withPath(invalidExpression("", "operand objects must hold exactly one of $ref or $literal"), path)
		}
		switch n.Content[0].Value {
		case refKey:
			name := unwrap(n.Content[1])
			if name == nil || name.Kind != yaml.ScalarNode || name.Value == "" {
				return Operand{}, withPath(invalidExpression(refKey, "reference must name a field"), path)
			}
			return Ref(name.Value), nil
		case literalKey:
			var raw interface{}
			if err := n.Content[1].Decode(&raw); err != nil {
				return Operand{}, withPath(invalidExpression(literalKey, err.Error()), path)
			}
			v, err := ValueOf(raw)
			if err != nil {
				return Operand{}, withPath(err, path)
			}
			return Lit(v), nil
		default:
			return Operand{}, withPath(invalidExpression(n.Content[0].Value, "unknown operand object"), path)
		}

	default:
		var raw interface{}
		if err := n.Decode(&raw); err != nil {
			return Operand{}, withPath(invalidExpression("", err.Error()), path)
		}
		if s, ok := raw.(string); ok {
			if name, isRef := referenceName(s); isRef {
				return Ref(name), nil
			}
		}
		v, err := ValueOf(raw)
		if err != nil {
			return Operand{}, withPath(err, path)
		}
		return Lit(v), nil
	}
}

// Validate checks the structure of expr without a record: every group has a
// known link and at least one child, every leaf uses known operators, and the
// nesting stays within the evaluator's depth bound. Evaluation performs the
// same checks lazily; Validate reports problems in branches a particular
// record would never reach.
func (ev *Evaluator) Validate(expr *Expression) error {
	return ev.validate(expr, 1, "$")
}

// Validate checks expr with DefaultMaxDepth.
func Validate(expr *Expression) error {
	return defaultEvaluator.Validate(expr)
}

func (ev *Evaluator) validate(expr *Expression, depth int, path string) error {
	if depth > ev.maxDepth {
		return &EvaluationError{Kind: ErrDepthExceeded, Msg: fmt.Sprintf("limit is %d", ev.maxDepth), Path: path}
	}
	if expr == nil {
		return withPath(invalidExpression("", "nil expression"), path)
	}
	if expr.Leaf != nil {
		if expr.Leaf.Field == "" {
			return withPath(invalidExpression("", "field name is empty"), path)
		}
		for _, group := range expr.Leaf.Groups {
			for _, c := range group {
				if c.Op < OpEqual || c.Op > OpNotIn {
					return withPath(unknownOperator(c.Op.String()), path)
				}
			}
		}
		return nil
	}
	if expr.Link != LinkAnd && expr.Link != LinkOr {
		return withPath(invalidExpression(string(expr.Link), ""), path)
	}
	if len(expr.Children) == 0 {
		return &EvaluationError{Kind: ErrEmptyGroup, Tag: string(expr.Link), Path: path}
	}
	for i, child := range expr.Children {
		if err := ev.validate(child, depth+1, fmt.Sprintf("%s.%s[%d]", path, expr.Link, i)); err != nil {
			return err
		}
	}
	return nil
}
