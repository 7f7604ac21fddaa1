package condition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperator(t *testing.T) {
	tests := []struct {
		token string
		want  Operator
	}{
		{"=", OpEqual},
		{"!=", OpNotEqual},
		{"<>", OpNotEqual},
		{">", OpGreater},
		{">=", OpGreaterEqual},
		{"<", OpLess},
		{"<=", OpLessEqual},
		{"IN", OpIn},
		{"in", OpIn},
		{"NOT IN", OpNotIn},
		{"not  in", OpNotIn},
		{" Not In ", OpNotIn},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseOperator(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOperatorUnknown(t *testing.T) {
	for _, token := range []string{"~=", "==", "LIKE", "NOTIN", ""} {
		_, err := ParseOperator(token)
		require.Error(t, err, token)
		assert.ErrorIs(t, err, ErrUnknownOperator)
		assert.Equal(t, "unknown_operator", KindOf(err))
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name  string
		token string
		left  Value
		right Value
		want  bool
	}{
		{"greater", ">", Number(5), Number(3), true},
		{"greater false", ">", Number(3), Number(5), false},
		{"greater equal", ">=", Number(3), Number(3), true},
		{"less", "<", Number(-1), Number(0), true},
		{"less equal", "<=", Number(4), Number(3), false},
		{"string ordering", "<", String("apple"), String("banana"), true},
		{"equal numbers", "=", Number(1), Number(1), true},
		{"equal strings", "=", String("a"), String("a"), true},
		{"equal across kinds", "=", Number(1), String("1"), false},
		{"equal null", "=", Null(), Null(), true},
		{"equal bool", "=", Bool(true), Bool(true), true},
		{"equal lists", "=", List(Number(1), String("x")), List(Number(1), String("x")), true},
		{"not equal", "!=", Number(1), Number(2), true},
		{"not equal alias", "<>", String("x"), String("x"), false},
		{"in", "IN", String("a"), List(String("a"), String("b")), true},
		{"in miss", "IN", String("c"), List(String("a"), String("b")), false},
		{"in mixed list", "IN", Number(1), List(Number(2), String("a"), Number(1)), true},
		{"not in", "NOT IN", Number(4), List(Number(1), Number(2)), true},
		{"not in hit", "not in", Number(2), List(Number(1), Number(2)), false},
		{"in empty", "IN", Number(1), List(), false},
		{"int equals float", "=", Int(3), Number(3), true},
		{"large ids differ", "=", Int(9007199254740993), Int(9007199254740992), false},
		{"large ids ordered", ">", Int(9007199254740993), Int(9007199254740992), true},
		{"large id against float", "=", Int(9007199254740993), Number(9007199254740992), false},
		{"large id above float", ">", Int(9007199254740993), Number(9007199254740992), true},
		{"uint above int64", ">", Uint(math.MaxUint64), Int(math.MaxInt64), true},
		{"negative below uint", "<", Int(-1), Uint(0), true},
		{"uint equals int", "=", Uint(42), Int(42), true},
		{"large id in list", "IN", Int(9007199254740993), List(Int(9007199254740992), Int(9007199254740993)), true},
		{"large id not in list", "NOT IN", Int(9007199254740993), List(Int(9007199254740992)), true},
		{"float fraction against int", "<", Number(2.5), Int(3), true},
		{"infinity above int", ">", Number(math.Inf(1)), Int(math.MaxInt64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareToken(tt.token, tt.left, tt.right)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompareTypeMismatch(t *testing.T) {
	tests := []struct {
		name  string
		op    Operator
		left  Value
		right Value
	}{
		{"string vs number", OpGreater, String("a"), Number(1)},
		{"null ordering", OpLess, Null(), Number(1)},
		{"bool ordering", OpGreaterEqual, Bool(true), Bool(false)},
		{"list ordering", OpLessEqual, List(Number(1)), List(Number(2))},
		{"in scalar", OpIn, Number(1), Number(1)},
		{"not in string", OpNotIn, String("a"), String("abc")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.op, tt.left, tt.right)
			require.Error(t, err)
			assert.False(t, got)
			assert.ErrorIs(t, err, ErrTypeMismatch)
			assert.Contains(t, err.Error(), tt.op.String())
		})
	}
}

func TestCompareUnknownOperator(t *testing.T) {
	_, err := CompareToken("~=", Number(1), Number(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownOperator)
	assert.Contains(t, err.Error(), `"~="`)

	_, err = Compare(Operator(99), Number(1), Number(1))
	assert.ErrorIs(t, err, ErrUnknownOperator)

	_, err = Compare(Operator(0), Number(1), Missing())
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestCompareMissingNeverMatches(t *testing.T) {
	for op := OpEqual; op <= OpNotIn; op++ {
		got, err := Compare(op, Number(1), Missing())
		require.NoError(t, err, op.String())
		assert.False(t, got, op.String())
	}
}

func TestCompareMissingListElement(t *testing.T) {
	got, err := Compare(OpIn, Null(), List(Number(2), Missing()))
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Compare(OpNotIn, Null(), List(Number(2), Missing()))
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCompareNaNIsUnordered(t *testing.T) {
	nan := Number(math.NaN())
	for _, op := range []Operator{OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpEqual} {
		got, err := Compare(op, nan, Number(1))
		require.NoError(t, err, op.String())
		assert.False(t, got, "NaN %s 1", op)

		got, err = Compare(op, Int(1), nan)
		require.NoError(t, err, op.String())
		assert.False(t, got, "1 %s NaN", op)

		got, err = Compare(op, nan, nan)
		require.NoError(t, err, op.String())
		assert.False(t, got, "NaN %s NaN", op)
	}

	got, err := Compare(OpNotEqual, nan, nan)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Compare(OpIn, nan, List(nan))
	require.NoError(t, err)
	assert.False(t, got)
}

func TestCompareOpaqueUnsupported(t *testing.T) {
	opaque := Opaque(map[string]interface{}{"x": 1})
	for op := OpEqual; op <= OpNotIn; op++ {
		got, err := Compare(op, opaque, List(Number(1)))
		require.Error(t, err, op.String())
		assert.False(t, got)
		assert.ErrorIs(t, err, ErrUnsupportedValue)
		assert.Equal(t, "unsupported_value", KindOf(err))

		_, err = Compare(op, Number(1), opaque)
		assert.ErrorIs(t, err, ErrUnsupportedValue, op.String())
	}

	got, err := Compare(OpEqual, opaque, Missing())
	require.NoError(t, err)
	assert.False(t, got)
}
