// Package condition evaluates rule conditions against flat records.
//
// A condition tree is made of field conditions combined with AND/OR groups
// nested to any depth. A field condition compares one field of the record
// against one or more operands; an operand is a literal, a reference to
// another field written as "[name]", or a list of operands.
//
// Example usage:
//
//	record, _ := condition.NewRecord(map[string]interface{}{
//	    "a": 1, "b": 2, "c": 1,
//	})
//
//	expr, err := condition.ParseExpression([]byte(`{
//	    "AND": [
//	        {"c": {"=": 1}},
//	        {"OR": [
//	            {"a": [{"=": "[b]"}, {"IN": [2, "a", "[c]"]}]},
//	            {"b": {"=": 1}}
//	        ]}
//	    ]
//	}`))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	matched, err := condition.Evaluate(record, expr) // true
//
// Field condition forms:
//
//	{"a": {"=": 1}}                       a == 1
//	{"a": {">": 0, "<": 10}}              a > 0 AND a < 10
//	{"a": [{"<": 0}, {"IN": [3, 6, 9]}]}  a < 0 OR a IN (3, 6, 9)
//
// Supported operators (case-insensitive): =, != (or <>), >, >=, <, <=, IN, NOT IN.
//
// A reference to a field that is absent from the record never matches, while
// a missing field under test fails with ErrFieldNotFound. In YAML documents,
// references must be quoted ('[b]'), otherwise YAML reads them as lists. The
// object forms {"$ref": "b"} and {"$literal": "[b]"} avoid the ambiguity.
// Exactly one outer bracket pair is removed, so "[[b]]" refers to the field
// named "[b]", not to b.
//
// Integers keep their exact value, so record IDs above 2^53 compare
// correctly; floats and integers compare numerically. Ordering against NaN is
// always false. Record fields with no comparable form, such as nested
// objects, are kept and only fail with ErrUnsupportedValue when a condition
// reads them.
//
// Evaluation is pure: records are never modified and nothing is cached, so an
// Evaluator can be shared across goroutines.
package condition
