package host

import (
	"errors"
	"math/big"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	City string
	Zip  int
}

type person struct {
	Name    string
	Age     int
	Home    *address
	private string
}

func (p *person) Greeting() string      { return "hi " + p.Name }
func (p *person) IsAdult() bool         { return p.Age >= 18 }
func (p *person) Describe(n int) string { return p.Name + "#" + Format(n) }
func (p *person) Fail() (string, error) { return "", errors.New("boom") }
func (p *person) Explode() string       { panic("kaboom") }

type customValue struct{}

func (customValue) Member(name string) (any, error) {
	if name == "answer" {
		return int64(42), nil
	}
	return nil, ErrNoMember
}
func (customValue) Index(any) (any, error)  { return nil, ErrNotIndexable }
func (customValue) Methods(string) []*Func { return nil }

func TestOf_Map(t *testing.T) {
	v := Of(map[string]any{"a": 1})

	got, err := v.Member("a")
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	_, err = v.Member("missing")
	assert.ErrorIs(t, err, ErrNoMember)

	got, err = v.Index("a")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestOf_TypedMap(t *testing.T) {
	v := Of(map[int]string{1: "one"})

	got, err := v.Index(int64(1))
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	got, err = v.Index(int64(2))
	require.NoError(t, err)
	assert.Nil(t, got)

	s, ok := v.(Settable)
	require.True(t, ok)
	require.NoError(t, s.SetIndex(int64(2), "two"))
	got, _ = v.Index(2)
	assert.Equal(t, "two", got)
}

func TestOf_ListIndexing(t *testing.T) {
	v := Of([]any{10, 20, 30})

	got, err := v.Index(int64(1))
	require.NoError(t, err)
	assert.Equal(t, 20, got)

	_, err = v.Index(int64(-1))
	assert.ErrorIs(t, err, ErrNegativeIndex)

	_, err = v.Index(int64(3))
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = v.Index("x")
	assert.ErrorIs(t, err, ErrNotIndexable)

	size, err := v.Member("size")
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
}

func TestOf_ListSetIndex(t *testing.T) {
	xs := []int{1, 2, 3}
	v := Of(xs)

	require.NoError(t, v.(Settable).SetIndex(int64(0), int64(9)))
	assert.Equal(t, 9, xs[0])

	err := v.(Settable).SetIndex(int64(0), "nope")
	assert.ErrorIs(t, err, ErrNotSettable)
}

func TestOf_String(t *testing.T) {
	v := Of("héllo")

	n, err := v.Member("length")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	c, err := v.Index(int64(1))
	require.NoError(t, err)
	assert.Equal(t, "é", c)
}

func TestOf_Struct(t *testing.T) {
	p := &person{Name: "Ann", Age: 30, Home: &address{City: "Oslo"}}
	v := Of(p)

	tests := []struct {
		member string
		want   any
	}{
		{"Name", "Ann"},
		{"name", "Ann"},
		{"age", int64(30)},
		{"greeting", "hi Ann"},
		{"adult", true},
	}
	for _, tt := range tests {
		t.Run(tt.member, func(t *testing.T) {
			got, err := v.Member(tt.member)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := v.Member("private")
	assert.ErrorIs(t, err, ErrNoMember)
}

func TestOf_StructSetMember(t *testing.T) {
	p := &person{}
	s := Of(p).(Settable)

	require.NoError(t, s.SetMember("name", "Bo"))
	require.NoError(t, s.SetMember("age", int64(7)))
	assert.Equal(t, "Bo", p.Name)
	assert.Equal(t, 7, p.Age)

	err := Of(person{}).(Settable).SetMember("name", "x")
	assert.ErrorIs(t, err, ErrNotSettable)
}

func TestOf_CustomValue(t *testing.T) {
	v := Of(customValue{})
	got, err := v.Member("answer")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
	assert.False(t, IsNative(customValue{}))
	assert.True(t, IsNative(map[string]any{}))
}

func TestStructMethods(t *testing.T) {
	p := &person{Name: "Ann"}

	fns := Of(p).Methods("describe")
	require.Len(t, fns, 1)
	got, err := fns[0].Invoke(p, []any{int64(3)})
	require.NoError(t, err)
	assert.Equal(t, "Ann#3", got)

	_, err = Of(p).Methods("fail")[0].Invoke(p, nil)
	assert.EqualError(t, err, "boom")

	_, err = Of(p).Methods("explode")[0].Invoke(p, nil)
	assert.ErrorContains(t, err, "panicked")
}

func TestSelect_MostSpecificWins(t *testing.T) {
	byInt := MustFunc("f", func(a int64) string { return "int" })
	byFloat := MustFunc("f", func(a float64) string { return "float" })
	byAny := MustFunc("f", func(a any) string { return "any" })
	fns := []*Func{byAny, byFloat, byInt}

	tests := []struct {
		name string
		arg  any
		want string
	}{
		{"exact int", int64(1), "int"},
		{"exact float", 1.5, "float"},
		{"string falls to any", "x", "any"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, args, err := Select(fns, []any{tt.arg})
			require.NoError(t, err)
			got, err := f.Call(nil, args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelect_DeclarationOrderBreaksTies(t *testing.T) {
	first := MustFunc("f", func(a int32) string { return "int32" })
	second := MustFunc("f", func(a int16) string { return "int16" })

	f, _, err := Select([]*Func{first, second}, []any{int64(1)})
	require.NoError(t, err)
	assert.Same(t, first, f)
}

func TestSelect_IdenticalSignaturesAmbiguous(t *testing.T) {
	a := MustFunc("f", func(s string) string { return "a" })
	b := MustFunc("f", func(s string) string { return "b" })

	_, _, err := Select([]*Func{a, b}, []any{"x"})
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestSelect_NoOverload(t *testing.T) {
	f := MustFunc("f", func(s string) string { return s })

	_, _, err := Select([]*Func{f}, []any{true})
	assert.ErrorIs(t, err, ErrNoOverload)

	_, _, err = Select(nil, nil)
	assert.ErrorIs(t, err, ErrNoMethod)
}

func TestSelect_Variadic(t *testing.T) {
	fixed := MustFunc("f", func(a, b string) string { return "fixed" })
	variadic := MustFunc("f", func(a ...string) string { return "variadic" })
	fns := []*Func{variadic, fixed}

	f, args, err := Select(fns, []any{"a", "b"})
	require.NoError(t, err)
	got, _ := f.Call(nil, args)
	assert.Equal(t, "fixed", got)

	f, args, err = Select(fns, []any{"a", "b", "c"})
	require.NoError(t, err)
	got, _ = f.Call(nil, args)
	assert.Equal(t, "variadic", got)
}

func TestBuiltins_StringSubstringOverloads(t *testing.T) {
	fns := Of("abcdef").Methods("substring")
	require.Len(t, fns, 2)

	f, args, err := Select(fns, []any{int64(2)})
	require.NoError(t, err)
	got, err := f.Call("abcdef", args)
	require.NoError(t, err)
	assert.Equal(t, "cdef", got)

	f, args, err = Select(fns, []any{int64(1), int64(3)})
	require.NoError(t, err)
	got, err = f.Call("abcdef", args)
	require.NoError(t, err)
	assert.Equal(t, "bc", got)

	_, err = f.Call("abc", []any{int64(2), int64(9)})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestBuiltins_MapMethods(t *testing.T) {
	m := map[string]any{"b": 2, "a": 1}
	v := Of(m)

	keys, err := v.Methods("keySet")[0].Call(m, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, keys)

	has, err := v.Methods("containsKey")[0].Invoke(m, []any{"a"})
	require.NoError(t, err)
	assert.Equal(t, true, has)
}

func TestBuiltins_Universal(t *testing.T) {
	fns := Of(int64(5)).Methods("toString")
	require.Len(t, fns, 1)
	got, err := fns[0].Call(int64(5), nil)
	require.NoError(t, err)
	assert.Equal(t, "5", got)
}

func TestBind(t *testing.T) {
	t.Run("map key", func(t *testing.T) {
		g, ok := Bind(map[string]any{"a": 1}, "a")
		require.True(t, ok)

		v, ok, err := g.Get(map[string]any{"a": 2})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 2, v)

		_, ok, _ = g.Get(map[string]any{"b": 2})
		assert.False(t, ok, "missing key is a miss")

		_, ok, _ = g.Get(&person{})
		assert.False(t, ok, "different shape is a miss")
	})

	t.Run("struct field", func(t *testing.T) {
		g, ok := Bind(&person{Name: "a"}, "name")
		require.True(t, ok)

		v, ok, err := g.Get(&person{Name: "b"})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "b", v)

		_, ok, _ = g.Get(map[string]any{"name": "c"})
		assert.False(t, ok)
	})

	t.Run("custom value is not bindable", func(t *testing.T) {
		_, ok := Bind(customValue{}, "answer")
		assert.False(t, ok)
	})
}

func TestDefaultTypes(t *testing.T) {
	types := DefaultTypes()

	for _, name := range []string{"Math", "lang.Math", "int", "Integer", "BigDecimal", "HashMap"} {
		_, ok := types.Lookup(name)
		assert.True(t, ok, name)
	}

	_, ok := types.Qualified("Math")
	assert.False(t, ok, "short names are not qualified names")

	lang := types.InPackage("lang")
	require.NotEmpty(t, lang)
	for _, typ := range lang {
		assert.Equal(t, "lang", typ.Package())
	}
}

func TestType_MathOverloads(t *testing.T) {
	math, _ := DefaultTypes().Lookup("Math")

	f, args, err := Select(math.Methods("max"), []any{int64(3), int64(7)})
	require.NoError(t, err)
	got, _ := f.Call(nil, args)
	assert.Equal(t, int64(7), got)

	f, args, err = Select(math.Methods("max"), []any{int64(3), 7.5})
	require.NoError(t, err)
	got, _ = f.Call(nil, args)
	assert.Equal(t, 7.5, got)

	pi, err := math.Member("PI")
	require.NoError(t, err)
	assert.InDelta(t, 3.14159, pi, 0.0001)
}

func TestType_Cast(t *testing.T) {
	types := DefaultTypes()
	intType, _ := types.Lookup("int")
	strType, _ := types.Lookup("String")
	boolType, _ := types.Lookup("boolean")

	got, err := intType.Cast(3.9)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	got, err = intType.Cast("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	_, err = intType.Cast(true)
	assert.ErrorIs(t, err, ErrCast)

	got, err = strType.Cast(int64(5))
	require.NoError(t, err)
	assert.Equal(t, "5", got)

	got, err = boolType.Cast("true")
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestType_IsInstance(t *testing.T) {
	types := DefaultTypes()
	intType, _ := types.Lookup("Integer")
	listType, _ := types.Lookup("List")
	objType, _ := types.Lookup("Object")

	assert.True(t, intType.IsInstance(int64(1)))
	assert.True(t, intType.IsInstance(3))
	assert.False(t, intType.IsInstance(1.0))
	assert.True(t, listType.IsInstance([]string{}))
	assert.True(t, objType.IsInstance("x"))
	assert.False(t, objType.IsInstance(nil))
}

func TestType_New(t *testing.T) {
	types := DefaultTypes()
	dec, _ := types.Lookup("BigDecimal")

	v, err := dec.New([]any{"1.25"})
	require.NoError(t, err)
	require.IsType(t, &big.Float{}, v)
	f, _ := v.(*big.Float).Float64()
	assert.Equal(t, 1.25, f)

	list, _ := types.Lookup("ArrayList")
	v, err = list.New(nil)
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)

	math, _ := types.Lookup("Math")
	_, err = math.New(nil)
	assert.ErrorIs(t, err, ErrNoMethod)
}

func TestTypes_CloneIsIndependent(t *testing.T) {
	clone := DefaultTypes().Clone()
	clone.Register(&Type{Name: "app.Order", GoType: reflect.TypeOf(person{})})

	_, ok := clone.Lookup("Order")
	assert.True(t, ok)
	_, ok = DefaultTypes().Lookup("Order")
	assert.False(t, ok)
}

func TestNumbers(t *testing.T) {
	assert.True(t, Equal(int64(2), 2.0))
	assert.True(t, Equal(2, int64(2)))
	assert.False(t, Equal(nil, 0))
	assert.True(t, Equal(nil, nil))
	assert.True(t, Equal([]any{1}, []any{1}))

	assert.Equal(t, -1, CompareNumbers(int64(1), 1.5))
	assert.Equal(t, 0, CompareNumbers(big.NewInt(3), int64(3)))
	assert.Equal(t, 1, CompareNumbers(ToBigFloat(2.5), int64(2)))

	assert.Equal(t, int64(7), Normalize(uint8(7)))
	assert.Equal(t, float64(1.5), Normalize(float32(1.5)))

	_, ok := ToInt64(1.5)
	assert.False(t, ok)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "null", Format(nil))
	assert.Equal(t, "2.5", Format(2.5))
	assert.Equal(t, "[1, a]", Format([]any{int64(1), "a"}))
	assert.Equal(t, "{a=1, b=2}", Format(map[string]any{"b": 2, "a": 1}))
}
