package expr

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
)

// emptyValue is the `empty` literal. It equals nil, the empty string,
// blank strings, zero, false and empty collections.
type emptyValue struct{}

func (emptyValue) String() string { return "empty" }

// Empty is the value of the `empty` literal.
var Empty any = emptyValue{}

// IsTruthy returns whether a value is truthy.
// nil is false, bools return their value, empty strings are false,
// zero numbers are false, empty collections are false, everything else is
// true.
func IsTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int64:
		return val != 0
	case float64:
		return val != 0
	case *big.Int:
		return val.Sign() != 0
	case *big.Float:
		return val.Sign() != 0
	case emptyValue:
		return false
	}
	if host.IsNumber(v) {
		f, _ := host.ToFloat64(v)
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// isEmpty reports whether v equals the `empty` literal.
func isEmpty(v any) bool {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return !IsTruthy(v)
}

// ToFloat64 converts a value to float64 for numeric comparison.
// Numeric strings are parsed; returns 0 for values that cannot be converted.
func ToFloat64(v any) float64 {
	if f, ok := host.ToFloat64(v); ok {
		return f
	}
	if s, ok := v.(string); ok {
		if n, ok := host.ParseNumber(s); ok {
			f, _ := host.ToFloat64(n)
			return f
		}
	}
	return 0
}

// describe names a value's type for error messages.
func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case emptyValue:
		return "empty"
	case *host.Type:
		return "type"
	}
	return fmt.Sprintf("%T", v)
}
