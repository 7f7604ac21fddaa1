package condition

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	record := Record{
		"a":   Number(1),
		"b":   Number(2),
		"ref": String("[b]"),
	}

	t.Run("literal", func(t *testing.T) {
		assert.Equal(t, String("x"), Resolve(Lit(String("x")), record))
	})

	t.Run("reference", func(t *testing.T) {
		assert.Equal(t, Number(2), Resolve(Ref("b"), record))
	})

	t.Run("missing reference", func(t *testing.T) {
		assert.True(t, Resolve(Ref("nope"), record).IsMissing())
	})

	t.Run("single indirection", func(t *testing.T) {
		assert.Equal(t, String("[b]"), Resolve(Ref("ref"), record))
	})

	t.Run("list", func(t *testing.T) {
		got := Resolve(Items(Lit(Number(2)), Lit(String("a")), Ref("a"), Ref("zz")), record)
		require.Equal(t, KindList, got.Kind())
		items := got.AsList()
		require.Len(t, items, 4)
		assert.Equal(t, Number(2), items[0])
		assert.Equal(t, String("a"), items[1])
		assert.Equal(t, Number(1), items[2])
		assert.True(t, items[3].IsMissing())
	})

	t.Run("record untouched", func(t *testing.T) {
		before := len(record)
		Resolve(Ref("missing"), record)
		assert.Len(t, record, before)
	})
}

func TestReferenceName(t *testing.T) {
	tests := []struct {
		in   string
		name string
		ok   bool
	}{
		{"[b]", "b", true},
		{"[other field]", "other field", true},
		{"[[b]]", "[b]", true},
		{"[]", "", false},
		{"b", "", false},
		{"[b", "", false},
		{"b]", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		name, ok := referenceName(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
	}
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want Value
	}{
		{"nil", nil, Null()},
		{"bool", true, Bool(true)},
		{"int", 3, Number(3)},
		{"int64", int64(-7), Number(-7)},
		{"int64 above 2^53", int64(9007199254740993), Int(9007199254740993)},
		{"uint64 max", uint64(math.MaxUint64), Uint(math.MaxUint64)},
		{"json integer above 2^53", json.Number("9007199254740993"), Int(9007199254740993)},
		{"json unsigned", json.Number("18446744073709551615"), Uint(math.MaxUint64)},
		{"uint8", uint8(9), Number(9)},
		{"float32", float32(1.5), Number(1.5)},
		{"json number", json.Number("2.25"), Number(2.25)},
		{"string", "x", String("x")},
		{"generic list", []interface{}{1, "a", nil}, List(Number(1), String("a"), Null())},
		{"typed list", []string{"a", "b"}, List(String("a"), String("b"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValueOf(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestValueOfUnsupported(t *testing.T) {
	_, err := ValueOf(map[string]interface{}{"nested": 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	_, err = NewRecord(map[string]interface{}{"ok": 1, "bad": json.Number("1e")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestValueOfKeepsIntegersExact(t *testing.T) {
	got, err := ValueOf(int64(9007199254740993))
	require.NoError(t, err)
	assert.False(t, got.Equal(Number(9007199254740992)))
	assert.Equal(t, "9007199254740993", got.String())
	assert.Equal(t, int64(9007199254740993), got.Native())
}

func TestNewRecordKeepsNestedFieldsOpaque(t *testing.T) {
	nested := map[string]interface{}{"city": "Madrid"}
	record, err := NewRecord(map[string]interface{}{
		"status":  "active",
		"address": nested,
		"mixed":   []interface{}{1, map[string]interface{}{"k": "v"}},
	})
	require.NoError(t, err)

	assert.Equal(t, KindString, record["status"].Kind())
	assert.Equal(t, KindOpaque, record["address"].Kind())
	assert.Equal(t, KindOpaque, record["mixed"].Kind())
	assert.Equal(t, nested, record.Native()["address"])
	assert.False(t, record["address"].Equal(record["address"]))
}

func TestRecordNative(t *testing.T) {
	record, err := NewRecord(map[string]interface{}{"a": 1, "tags": []string{"x"}})
	require.NoError(t, err)

	native := record.Native()
	assert.Equal(t, int64(1), native["a"])
	assert.Equal(t, []interface{}{"x"}, native["tags"])
}
