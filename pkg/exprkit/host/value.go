package host

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Value is the view of a host object that expression evaluation navigates.
//
// Implement Value on your own types to control exactly which members,
// indexes and methods expressions can reach. Plain Go values (maps, slices,
// strings, structs) are adapted automatically by Of.
type Value interface {
	// Member returns the named field or property. Implementations return an
	// error wrapping ErrNoMember when the member does not exist.
	Member(name string) (any, error)

	// Index returns the element stored under key.
	Index(key any) (any, error)

	// Methods returns the overload set for name in declaration order,
	// or nil when the value has no such method.
	Methods(name string) []*Func
}

// Settable is implemented by values that accept writes from assignments
// such as `a.b = 1` or `a[0] = 1`.
type Settable interface {
	SetMember(name string, value any) error
	SetIndex(key any, value any) error
}

// Sentinel errors for host navigation.
var (
	// ErrNoMember indicates a field or property does not exist.
	ErrNoMember = errors.New("no such member")

	// ErrNoMethod indicates no method with the requested name exists.
	ErrNoMethod = errors.New("no such method")

	// ErrNoOverload indicates methods exist but none accepts the arguments.
	ErrNoOverload = errors.New("no applicable overload")

	// ErrAmbiguous indicates two overloads with identical signatures matched.
	ErrAmbiguous = errors.New("ambiguous overload")

	// ErrNotIndexable indicates the value does not support indexing.
	ErrNotIndexable = errors.New("value is not indexable")

	// ErrNegativeIndex indicates a negative list index.
	ErrNegativeIndex = errors.New("negative index")

	// ErrIndexOutOfRange indicates an index past the end of a list.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNotSettable indicates the target cannot be written.
	ErrNotSettable = errors.New("value is not settable")

	// ErrNilValue indicates navigation through a nil value.
	ErrNilValue = errors.New("nil value")

	// ErrCast indicates a value cannot be converted to a type.
	ErrCast = errors.New("cannot cast value")
)

// Of adapts v to a Value. It returns nil for a nil v.
//
// Values that already implement Value are returned as-is. Maps, slices,
// arrays, strings and structs (or pointers to them) get reflection-backed
// adapters; everything else gets an adapter exposing only the universal
// built-in methods.
func Of(v any) Value {
	switch val := v.(type) {
	case nil:
		return nil
	case Value:
		return val
	case map[string]any:
		return mapValue(val)
	case string:
		return stringValue(val)
	case []any:
		return listValue{rv: reflect.ValueOf(val)}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return reflectMap{rv: rv}
	case reflect.Slice, reflect.Array:
		return listValue{rv: rv}
	case reflect.Struct:
		return structValue{rv: rv}
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		if rv.Elem().Kind() == reflect.Struct {
			return structValue{rv: rv}
		}
	}
	return scalarValue{v: v}
}

// IsNative reports whether v is navigated by one of the built-in adapters
// rather than by a user-supplied Value implementation.
func IsNative(v any) bool {
	if v == nil {
		return true
	}
	_, custom := v.(Value)
	return !custom
}

// mapValue adapts map[string]any, the most common context shape.
type mapValue map[string]any

func (m mapValue) Member(name string) (any, error) {
	v, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMember, name)
	}
	return v, nil
}

func (m mapValue) Index(key any) (any, error) {
	return m[keyString(key)], nil
}

func (m mapValue) Methods(name string) []*Func {
	return builtinMethods(mapBuiltins, name)
}

func (m mapValue) SetMember(name string, value any) error {
	m[name] = value
	return nil
}

func (m mapValue) SetIndex(key any, value any) error {
	m[keyString(key)] = value
	return nil
}

// reflectMap adapts maps with non-standard key or element types.
type reflectMap struct {
	rv reflect.Value
}

func (m reflectMap) Member(name string) (any, error) {
	key, ok := convertTo(name, m.rv.Type().Key())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMember, name)
	}
	v := m.rv.MapIndex(reflect.ValueOf(key))
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrNoMember, name)
	}
	return v.Interface(), nil
}

func (m reflectMap) Index(key any) (any, error) {
	k, ok := convertTo(key, m.rv.Type().Key())
	if !ok {
		return nil, fmt.Errorf("%w: key %v does not fit %s", ErrNotIndexable, key, m.rv.Type().Key())
	}
	v := m.rv.MapIndex(reflect.ValueOf(k))
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

func (m reflectMap) Methods(name string) []*Func {
	return builtinMethods(mapBuiltins, name)
}

func (m reflectMap) SetMember(name string, value any) error {
	return m.SetIndex(name, value)
}

func (m reflectMap) SetIndex(key any, value any) error {
	k, ok := convertTo(key, m.rv.Type().Key())
	if !ok {
		return fmt.Errorf("%w: key %v", ErrNotSettable, key)
	}
	v, ok := convertTo(value, m.rv.Type().Elem())
	if !ok {
		return fmt.Errorf("%w: %T into %s", ErrNotSettable, value, m.rv.Type().Elem())
	}
	m.rv.SetMapIndex(reflect.ValueOf(k), valueOrZero(v, m.rv.Type().Elem()))
	return nil
}

// listValue adapts slices and arrays.
type listValue struct {
	rv reflect.Value
}

func (l listValue) Member(name string) (any, error) {
	return zeroArgBuiltin(listBuiltins, l.rv.Interface(), name)
}

func (l listValue) Index(key any) (any, error) {
	i, err := listIndex(key, l.rv.Len())
	if err != nil {
		return nil, err
	}
	return l.rv.Index(i).Interface(), nil
}

func (l listValue) Methods(name string) []*Func {
	return builtinMethods(listBuiltins, name)
}

func (l listValue) SetMember(name string, _ any) error {
	return fmt.Errorf("%w: list member %s", ErrNotSettable, name)
}

func (l listValue) SetIndex(key any, value any) error {
	i, err := listIndex(key, l.rv.Len())
	if err != nil {
		return err
	}
	elem := l.rv.Index(i)
	if !elem.CanSet() {
		return fmt.Errorf("%w: list element %d", ErrNotSettable, i)
	}
	v, ok := convertTo(value, elem.Type())
	if !ok {
		return fmt.Errorf("%w: %T into %s", ErrNotSettable, value, elem.Type())
	}
	elem.Set(valueOrZero(v, elem.Type()))
	return nil
}

// listIndex validates key as an index into a list of length n.
func listIndex(key any, n int) (int, error) {
	i, ok := ToInt64(key)
	if !ok {
		return 0, fmt.Errorf("%w: list index must be an integer, got %T", ErrNotIndexable, key)
	}
	if i < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeIndex, i)
	}
	if i >= int64(n) {
		return 0, fmt.Errorf("%w: %d (length %d)", ErrIndexOutOfRange, i, n)
	}
	return int(i), nil
}

// stringValue adapts strings.
type stringValue string

func (s stringValue) Member(name string) (any, error) {
	return zeroArgBuiltin(stringBuiltins, string(s), name)
}

func (s stringValue) Index(key any) (any, error) {
	runes := []rune(string(s))
	i, err := listIndex(key, len(runes))
	if err != nil {
		return nil, err
	}
	return string(runes[i]), nil
}

func (s stringValue) Methods(name string) []*Func {
	return builtinMethods(stringBuiltins, name)
}

// scalarValue adapts numbers, booleans and other leaf values.
type scalarValue struct {
	v any
}

func (s scalarValue) Member(name string) (any, error) {
	return zeroArgBuiltin(nil, s.v, name)
}

func (s scalarValue) Index(any) (any, error) {
	return nil, fmt.Errorf("%w: %T", ErrNotIndexable, s.v)
}

func (s scalarValue) Methods(name string) []*Func {
	return builtinMethods(nil, name)
}

// keyString renders a map key the way string-keyed maps store it.
func keyString(key any) string {
	if s, ok := key.(string); ok {
		return s
	}
	return Format(key)
}

// capitalize upper-cases the first letter, mapping `name` to `Name`.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
