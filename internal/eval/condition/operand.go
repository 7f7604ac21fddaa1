package condition

import "strings"

// OperandKind tags the variant held by an Operand.
type OperandKind int

const (
	OperandLiteral OperandKind = iota
	OperandReference
	OperandList
)

// Operand is the right-hand side of a comparison: a literal, a reference to
// another field of the same record, or a list of operands.
type Operand struct {
	kind    OperandKind
	literal Value
	field   string
	items   []Operand
}

// Lit returns a literal operand.
func Lit(v Value) Operand { return Operand{kind: OperandLiteral, literal: v} }

// Ref returns a reference to field.
func Ref(field string) Operand { return Operand{kind: OperandReference, field: field} }

// Items returns a list operand.
func Items(items ...Operand) Operand { return Operand{kind: OperandList, items: items} }

func (o Operand) Kind() OperandKind { return o.kind }

// Field is the referenced field name for a reference operand.
func (o Operand) Field() string { return o.field }

func (o Operand) String() string {
	switch o.kind {
	case OperandReference:
		return "[" + o.field + "]"
	case OperandList:
		parts := make([]string, len(o.items))
		for i, item := range o.items {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return o.literal.String()
	}
}

// referenceName extracts the field name from "[name]". Exactly one bracket
// pair is stripped and the name must be non-empty.
func referenceName(s string) (string, bool) {
	if len(s) < 3 || s[0] != '[' || s[len(s)-1] != ']' {
		return "", false
	}
	return s[1 : len(s)-1], true
}

// Resolve turns an operand into the value to compare against. References are
// looked up once in record: a referenced field that itself holds "[x]" text is
// returned as that string. Absent fields resolve to Missing.
func Resolve(o Operand, record Record) Value {
	switch o.kind {
	case OperandReference:
		if v, ok := record[o.field]; ok {
			return v
		}
		return Missing()
	case OperandList:
		items := make([]Value, len(o.items))
		for i, item := range o.items {
			items[i] = Resolve(item, record)
		}
		return List(items...)
	default:
		return o.literal
	}
}
