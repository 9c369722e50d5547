package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonical_SortedKeysNoWhitespace(t *testing.T) {
	require := require.New(t)

	v := Mapping(map[string]Value{
		"b": Int(2),
		"a": Sequence(Bool(true), Null(), String("x")),
		"c": Mapping(map[string]Value{"z": Int(1), "y": Number(1.5)}),
	})
	b, err := Canonical(v)
	require.NoError(err)
	require.Equal(`{"a":[true,null,"x"],"b":2,"c":{"y":1.5,"z":1}}`, string(b))
}

func TestCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := Canonical(String("<a&b>"))
	require.NoError(t, err)
	require.Equal(t, `"<a&b>"`, string(b))
}

func TestCanonical_RejectsNonFinite(t *testing.T) {
	_, err := Canonical(Mapping(map[string]Value{"x": Number(math.NaN())}))
	require.Error(t, err)
	_, err = Canonical(Sequence(Number(math.Inf(1))))
	require.Error(t, err)
}

func TestParse_RoundTrip(t *testing.T) {
	require := require.New(t)

	in := `{"count":3,"list":[1,"two",false,null],"nested":{"k":"v"}}`
	v, err := Parse([]byte(in))
	require.NoError(err)
	require.Equal(KindMapping, v.Kind())

	out, err := Canonical(v)
	require.NoError(err)
	require.Equal(in, string(out))

	again, err := Parse(out)
	require.NoError(err)
	require.True(v.Equal(again))
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{"", "{", `{"a":1} {}`, "nope"} {
		_, err := Parse([]byte(in))
		require.Error(t, err, "input %q", in)
	}
}

func TestValue_JSONField(t *testing.T) {
	require := require.New(t)

	type wrapper struct {
		V Value `json:"v"`
	}
	b, err := json.Marshal(wrapper{V: Mapping(map[string]Value{"n": Int(7)})})
	require.NoError(err)
	require.Equal(`{"v":{"n":7}}`, string(b))

	var w wrapper
	require.NoError(json.Unmarshal([]byte(`{"v":[1,2]}`), &w))
	require.Equal(KindSequence, w.V.Kind())
	require.Equal(2, w.V.Len())

	require.NoError(json.Unmarshal([]byte(`{"v":null}`), &w))
	require.True(w.V.IsNull())
}

func TestValue_Accessors(t *testing.T) {
	require := require.New(t)

	n, ok := Int(4).AsNumber()
	require.True(ok)
	require.Equal(4.0, n)

	_, ok = String("x").AsNumber()
	require.False(ok)

	s, ok := String("x").AsString()
	require.True(ok)
	require.Equal("x", s)

	b, ok := Bool(true).AsBool()
	require.True(ok)
	require.True(b)

	m := Mapping(map[string]Value{"b": Null(), "a": Null()})
	require.Equal([]string{"a", "b"}, m.Keys())
	require.Nil(String("x").Keys())

	_, ok = Int(1).Get("a")
	require.False(ok)
}

func TestValue_Immutable(t *testing.T) {
	require := require.New(t)

	src := map[string]Value{"a": Int(1)}
	m := Mapping(src)
	src["a"] = Int(2)
	got, _ := m.Get("a")
	require.True(got.Equal(Int(1)))

	updated := m.With("a", Int(3))
	got, _ = m.Get("a")
	require.True(got.Equal(Int(1)))
	got, _ = updated.Get("a")
	require.True(got.Equal(Int(3)))

	seq := Sequence(Int(1))
	items := seq.Items()
	items[0] = Int(9)
	require.True(seq.Items()[0].Equal(Int(1)))
}

func TestValue_Equal(t *testing.T) {
	a := MustParse(`{"x":[1,{"y":null}]}`)
	b := MustParse(`{"x":[1,{"y":null}]}`)
	c := MustParse(`{"x":[1,{"y":false}]}`)
	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
	require.False(t, Int(1).Equal(String("1")))
}

func TestFromInterface_Unsupported(t *testing.T) {
	_, err := FromInterface(struct{}{})
	require.Error(t, err)
}
