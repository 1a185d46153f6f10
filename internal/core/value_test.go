package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny_ConvertsSupportedShapes(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null()},
		{"string", "x", String("x")},
		{"int", 7, Int(7)},
		{"uint8", uint8(3), Int(3)},
		{"float32", float32(1.5), Float(1.5)},
		{"bool", true, Bool(true)},
		{"strings", []string{"a", "b"}, List(String("a"), String("b"))},
		{"mixed list", []any{1, "a", nil}, List(Int(1), String("a"), Null())},
		{"string map", map[string]string{"k": "v"}, Map(map[string]Value{"k": String("v")})},
		{"nested map", map[string]any{"n": []int{1}}, Map(map[string]Value{"n": List(Int(1))})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromAny(tc.in)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestFromAny_RejectsUnsupported(t *testing.T) {
	_, err := FromAny(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	var typeErr *ValueTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "ch", typeErr.Path)

	_, err = FromAny(uint64(math.MaxUint64))
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestValueEqual_KindIsPartOfIdentity(t *testing.T) {
	assert.False(t, Int(1).Equal(Float(1)))
	assert.False(t, String("1").Equal(Int(1)))
	assert.True(t, List(Int(1), Map(map[string]Value{"a": Bool(true)})).
		Equal(List(Int(1), Map(map[string]Value{"a": Bool(true)}))))
	assert.False(t, List(Int(1)).Equal(List(Int(1), Int(2))))
	assert.True(t, Value{}.Equal(Null()))
}

func TestValueInterface_UnwrapsToPlainGo(t *testing.T) {
	v := Map(map[string]Value{"xs": List(Int(1), String("a")), "f": Float(2.5)})
	assert.Equal(t, map[string]any{"xs": []any{int64(1), "a"}, "f": 2.5}, v.Interface())
}

func TestValueJSON_TaggedForm(t *testing.T) {
	b, err := json.Marshal(Int(1))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"int","value":1}`, string(b))

	b, err = json.Marshal(Map(map[string]Value{"b": Null(), "a": List(String("x"))}))
	require.NoError(t, err)
	assert.Equal(t,
		`{"kind":"map","value":{"a":{"kind":"list","value":[{"kind":"string","value":"x"}]},"b":{"kind":"null","value":null}}}`,
		string(b))
}

func TestValueJSON_RoundTripKeepsKinds(t *testing.T) {
	in := List(Int(9007199254740993), Float(1), String("s"), Bool(false), Null(),
		Map(map[string]Value{"k": Float(0.25)}))
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Value
	require.NoError(t, json.Unmarshal(b, &out))
	assert.True(t, in.Equal(out), "got %s", out)

	items, ok := out.AsList()
	require.True(t, ok)
	assert.Equal(t, KindFloat, items[1].Kind())
}

func TestValueJSON_RejectsNonFiniteFloat(t *testing.T) {
	_, err := json.Marshal(Float(math.NaN()))
	require.Error(t, err)
	_, err = json.Marshal(List(Float(math.Inf(1))))
	require.Error(t, err)
}

func TestValueJSON_RejectsUnknownFieldsAndKinds(t *testing.T) {
	var v Value
	require.Error(t, json.Unmarshal([]byte(`{"kind":"int","value":1,"extra":true}`), &v))
	require.Error(t, json.Unmarshal([]byte(`{"kind":"decimal","value":"1"}`), &v))
	require.Error(t, json.Unmarshal([]byte(`{"kind":"int","value":1.5}`), &v))
}
