package condition

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	// KindMissing marks a reference whose field is absent from the record.
	// Only the resolver produces it.
	KindMissing
	// KindOpaque holds a record field the engine cannot compare, such as a
	// nested object. Comparisons that touch it fail with ErrUnsupportedValue.
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMissing:
		return "missing"
	case KindOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// numForm records how a number was written. Integers keep their exact value
// next to the float64 approximation.
type numForm uint8

const (
	numFloat numForm = iota
	numInt
	numUint
)

// Value is a record value or a resolved operand. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	form numForm
	i    int64
	u    uint64
	s    string
	list []Value
	raw  interface{}
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a floating point number.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int wraps a signed integer without losing precision.
func Int(i int64) Value { return Value{kind: KindNumber, n: float64(i), form: numInt, i: i} }

// Uint wraps an unsigned integer without losing precision.
func Uint(u uint64) Value { return Value{kind: KindNumber, n: float64(u), form: numUint, u: u} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List wraps a sequence of values.
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// Missing returns the sentinel used for unresolved references.
func Missing() Value { return Value{kind: KindMissing} }

// Opaque keeps a record field that has no comparable form.
func Opaque(raw interface{}) Value { return Value{kind: KindOpaque, raw: raw} }

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsMissing() bool   { return v.kind == KindMissing }
func (v Value) AsBool() bool      { return v.b }
func (v Value) AsNumber() float64 { return v.n }
func (v Value) AsString() string  { return v.s }
func (v Value) AsList() []Value   { return v.list }

// Equal reports value equality. Values of different kinds are never equal.
// Missing, Opaque and NaN are not equal to anything, themselves included.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind || v.kind == KindMissing || v.kind == KindOpaque {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		c, ok := compareNumbers(v, other)
		return ok && c == 0
	case KindString:
		return v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Native converts v back into plain Go values (nil, bool, int64, uint64,
// float64, string, []interface{}). Opaque values return what they wrap and
// Missing converts to nil.
func (v Value) Native() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		switch v.form {
		case numInt:
			return v.i
		case numUint:
			return v.u
		}
		return v.n
	case KindOpaque:
		return v.raw
	case KindString:
		return v.s
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Native()
		}
		return out
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindMissing:
		return "<missing>"
	case KindOpaque:
		return fmt.Sprintf("<opaque %T>", v.raw)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		switch v.form {
		case numInt:
			return strconv.FormatInt(v.i, 10)
		case numUint:
			return strconv.FormatUint(v.u, 10)
		}
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return v.kind.String()
}

// MarshalJSON encodes v as its native JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// ValueOf converts a decoded Go value into a Value. Nested maps, structs and
// other non-scalar types are rejected with ErrUnsupportedValue.
func ValueOf(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Uint(uint64(t)), nil
	case uint8:
		return Uint(uint64(t)), nil
	case uint16:
		return Uint(uint64(t)), nil
	case uint32:
		return Uint(uint64(t)), nil
	case uint64:
		return Uint(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		if u, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return Uint(u), nil
		}
		n, err := t.Float64()
		if err != nil {
			return Value{}, &EvaluationError{Kind: ErrUnsupportedValue, Msg: fmt.Sprintf("invalid number %q", t.String())}
		}
		return Number(n), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	}

	// Typed slices such as []string or []int.
	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	}

	return Value{}, &EvaluationError{Kind: ErrUnsupportedValue, Msg: fmt.Sprintf("cannot use %T as a value", x)}
}

// Record is the field-name to value mapping a condition is evaluated against.
// Evaluation never mutates it.
type Record map[string]Value

// NewRecord converts a decoded document into a Record. Fields without a
// comparable form, such as nested objects, are kept as Opaque values so that
// only conditions touching them fail. The error is reserved for malformed
// numbers.
func NewRecord(fields map[string]interface{}) (Record, error) {
	record := make(Record, len(fields))
	for name, raw := range fields {
		v, err := ValueOf(raw)
		if err != nil {
			if _, bad := raw.(json.Number); bad {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			v = Opaque(raw)
		}
		record[name] = v
	}
	return record, nil
}

// Native returns the record as plain Go values.
func (r Record) Native() map[string]interface{} {
	out := make(map[string]interface{}, len(r))
	for name, v := range r {
		out[name] = v.Native()
	}
	return out
}


// compareNumbers orders two numbers. Integers compare exactly, including an
// integral float against an integer. ok is false when either side is NaN.
func compareNumbers(a, b Value) (c int, ok bool) {
	if math.IsNaN(a.n) || math.IsNaN(b.n) {
		return 0, false
	}
	a, b = exactForm(a), exactForm(b)
	if a.form == numFloat || b.form == numFloat {
		return cmp.Compare(a.n, b.n), true
	}
	return compareIntegers(a, b), true
}

func compareIntegers(a, b Value) int {
	switch {
	case a.form == numInt && b.form == numInt:
		return cmp.Compare(a.i, b.i)
	case a.form == numUint && b.form == numUint:
		return cmp.Compare(a.u, b.u)
	case a.form == numInt:
		if a.i < 0 {
			return -1
		}
		return cmp.Compare(uint64(a.i), b.u)
	default:
		if b.i < 0 {
			return 1
		}
		return cmp.Compare(a.u, uint64(b.i))
	}
}

// exactForm turns an integral float into an integer when it fits, so that
// 2^53 as a float and 2^53+1 as an integer stay distinct.
func exactForm(v Value) Value {
	if v.form != numFloat || v.n != math.Trunc(v.n) {
		return v
	}
	switch {
	case v.n >= math.MinInt64 && v.n < math.MaxInt64:
		return Int(int64(v.n))
	case v.n >= 0 && v.n < math.MaxUint64:
		return Uint(uint64(v.n))
	}
	return v
}
