package condition

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(t *testing.T) Record {
	t.Helper()
	record, err := NewRecord(map[string]interface{}{
		"a": 1, "b": 2, "c": 1, "aa": "a", "bb": "bb", "cc": "a",
	})
	require.NoError(t, err)
	return record
}

func TestEvaluateFieldAndForm(t *testing.T) {
	record := Record{"a": Number(15)}

	fc := All("a", Cmp(OpGreater, Lit(Number(0))), Cmp(OpLess, Lit(Number(10))))
	got, err := EvaluateField(record, fc)
	require.NoError(t, err)
	assert.False(t, got)

	record["a"] = Number(5)
	got, err = EvaluateField(record, fc)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateFieldShortCircuitsAnd(t *testing.T) {
	// The second comparison would be a type mismatch if it were reached.
	fc := All("a", Cmp(OpGreater, Lit(Number(20))), Cmp(OpLess, Lit(String("x"))))
	got, err := EvaluateField(Record{"a": Number(15)}, fc)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateFieldOrForm(t *testing.T) {
	fc := Any("a",
		[]Comparison{Cmp(OpLess, Lit(Number(0)))},
		[]Comparison{Cmp(OpIn, Items(Lit(Number(3)), Lit(Number(6)), Lit(Number(9))))},
	)

	got, err := EvaluateField(Record{"a": Number(6)}, fc)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = EvaluateField(Record{"a": Number(4)}, fc)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = EvaluateField(Record{"a": Number(-1)}, fc)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateFieldEmptyForms(t *testing.T) {
	got, err := EvaluateField(Record{"a": Number(1)}, All("a"))
	require.NoError(t, err)
	assert.True(t, got)

	got, err = EvaluateField(Record{"a": Number(1)}, Any("a"))
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateFieldReferences(t *testing.T) {
	fc := All("a", Cmp(OpNotEqual, Ref("b")))

	got, err := EvaluateField(Record{"a": Number(1), "b": Number(2)}, fc)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = EvaluateField(Record{"a": Number(1)}, fc)
	require.NoError(t, err, "a dangling reference must not fail")
	assert.False(t, got)
}

func TestEvaluateFieldNotFound(t *testing.T) {
	_, err := EvaluateField(Record{"b": Number(1)}, All("a", Cmp(OpEqual, Lit(Number(1)))))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFieldNotFound)
	assert.Equal(t, "field_not_found", KindOf(err))
	assert.Contains(t, err.Error(), `"a"`)
}

func workedExample() *Expression {
	return And(
		Leaf(All("c", Cmp(OpEqual, Lit(Number(1))))),
		Or(
			Leaf(Any("a",
				[]Comparison{Cmp(OpEqual, Ref("b"))},
				[]Comparison{Cmp(OpIn, Items(Lit(Number(2)), Lit(String("a")), Ref("c")))},
			)),
			Leaf(All("b", Cmp(OpEqual, Lit(Number(1))))),
		),
	)
}

func TestEvaluateNestedTree(t *testing.T) {
	got, err := Evaluate(sampleRecord(t), workedExample())
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateShortCircuitsGroups(t *testing.T) {
	record := Record{"c": Number(1)}
	missing := Leaf(All("absent", Cmp(OpEqual, Lit(Number(1)))))

	got, err := Evaluate(record, And(Leaf(All("c", Cmp(OpEqual, Lit(Number(2))))), missing))
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Evaluate(record, Or(Leaf(All("c", Cmp(OpEqual, Lit(Number(1))))), missing))
	require.NoError(t, err)
	assert.True(t, got)

	_, err = Evaluate(record, Or(Leaf(All("c", Cmp(OpEqual, Lit(Number(2))))), missing))
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestEvaluateEmptyGroup(t *testing.T) {
	for _, expr := range []*Expression{And(), Or()} {
		_, err := Evaluate(Record{}, expr)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyGroup)
	}
}

func TestEvaluateInvalidLink(t *testing.T) {
	expr := &Expression{Link: "XOR", Children: []*Expression{Leaf(All("a"))}}
	_, err := Evaluate(Record{"a": Number(1)}, expr)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidExpression)
	assert.Contains(t, err.Error(), `"XOR"`)

	_, err = Evaluate(Record{}, &Expression{})
	assert.ErrorIs(t, err, ErrInvalidExpression)

	_, err = Evaluate(Record{}, nil)
	assert.ErrorIs(t, err, ErrInvalidExpression)
}

func TestEvaluateErrorPath(t *testing.T) {
	expr := And(
		Leaf(All("c", Cmp(OpEqual, Lit(Number(1))))),
		Leaf(All("c", Cmp(OpGreater, Lit(String("x"))))),
	)
	_, err := Evaluate(Record{"c": Number(1)}, expr)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, err.Error(), "$.AND[1]")
}

func nested(depth int) *Expression {
	expr := Leaf(All("a", Cmp(OpEqual, Lit(Number(1)))))
	for i := 1; i < depth; i++ {
		expr = And(expr)
	}
	return expr
}

func TestEvaluateMaxDepth(t *testing.T) {
	record := Record{"a": Number(1)}

	ev := NewEvaluator(WithMaxDepth(5))
	assert.Equal(t, 5, ev.MaxDepth())

	got, err := ev.Evaluate(record, nested(5))
	require.NoError(t, err)
	assert.True(t, got)

	_, err = ev.Evaluate(record, nested(6))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDepthExceeded)

	_, err = Evaluate(record, nested(DefaultMaxDepth+1))
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	record := sampleRecord(t)
	expr := workedExample()

	for i := 0; i < 50; i++ {
		got, err := Evaluate(record, expr)
		require.NoError(t, err)
		require.True(t, got)
	}

	var wg sync.WaitGroup
	results := make([]bool, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Evaluate(record, expr)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.True(t, got)
	}
}

func TestExpressionString(t *testing.T) {
	assert.Equal(t,
		`c = 1 AND ((a = [b] OR a IN [2, "a", [c]]) OR b = 1)`,
		workedExample().String(),
	)
}

func TestExpressionFields(t *testing.T) {
	assert.Equal(t, []string{"c", "a", "b"}, workedExample().Fields())
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(workedExample()))

	// An OR that would short-circuit at evaluation time is still rejected.
	err := Validate(Or(Leaf(All("a", Cmp(OpEqual, Lit(Number(1))))), And()))
	assert.ErrorIs(t, err, ErrEmptyGroup)

	err = Validate(Leaf(All("a", Cmp(Operator(42), Lit(Number(1))))))
	assert.ErrorIs(t, err, ErrUnknownOperator)

	err = Validate(&Expression{Link: "NAND", Children: []*Expression{Leaf(All("a"))}})
	assert.ErrorIs(t, err, ErrInvalidExpression)

	err = NewEvaluator(WithMaxDepth(2)).Validate(nested(3))
	assert.ErrorIs(t, err, ErrDepthExceeded)
}
