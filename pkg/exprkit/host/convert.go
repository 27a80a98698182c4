package host

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ToInt64 converts integral values to int64. Floats convert only when they
// hold an exact integer; strings are not parsed.
func ToInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int16:
		return int64(val), true
	case int8:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint:
		if uint64(val) > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float64:
		if val != math.Trunc(val) || val > math.MaxInt64 || val < math.MinInt64 {
			return 0, false
		}
		return int64(val), true
	case float32:
		return ToInt64(float64(val))
	case *big.Int:
		if val == nil || !val.IsInt64() {
			return 0, false
		}
		return val.Int64(), true
	case *big.Float:
		if val == nil || !val.IsInt() {
			return 0, false
		}
		i, acc := val.Int64()
		return i, acc == big.Exact
	}
	return 0, false
}

// ToFloat64 converts any numeric value to float64.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case *big.Float:
		if val == nil {
			return 0, false
		}
		f, _ := val.Float64()
		return f, true
	case *big.Int:
		if val == nil {
			return 0, false
		}
		f, _ := new(big.Float).SetInt(val).Float64()
		return f, true
	}
	if i, ok := ToInt64(v); ok {
		return float64(i), true
	}
	if u, ok := v.(uint64); ok {
		return float64(u), true
	}
	return 0, false
}

// IsNumber reports whether v is one of the numeric kinds expressions handle.
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, *big.Int, *big.Float:
		return true
	}
	return false
}

// Normalize maps Go numeric kinds onto the expression numeric tower:
// signed and unsigned integers become int64, float32 becomes float64.
// Non-numeric values are returned unchanged.
func Normalize(v any) any {
	switch val := v.(type) {
	case int64, float64, *big.Int, *big.Float:
		return v
	case float32:
		return float64(val)
	case uint64:
		if val > math.MaxInt64 {
			return new(big.Int).SetUint64(val)
		}
		return int64(val)
	case uint:
		return Normalize(uint64(val))
	}
	if i, ok := ToInt64(v); ok {
		return i
	}
	return v
}

// Equal reports value equality the way expressions see it: numbers compare
// by value across kinds, nil equals only nil, everything else is deep equal.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if IsNumber(a) && IsNumber(b) {
		return CompareNumbers(a, b) == 0
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	return reflect.DeepEqual(a, b)
}

// CompareNumbers orders two numeric values, returning -1, 0 or +1.
// Both arguments must satisfy IsNumber.
func CompareNumbers(a, b any) int {
	ai, aok := ToInt64(a)
	bi, bok := ToInt64(b)
	if aok && bok && isIntegral(a) && isIntegral(b) {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	_, aBig := a.(*big.Float)
	_, bBig := b.(*big.Float)
	_, aBigI := a.(*big.Int)
	_, bBigI := b.(*big.Int)
	if aBig || bBig || aBigI || bBigI {
		return ToBigFloat(a).Cmp(ToBigFloat(b))
	}
	af, _ := ToFloat64(a)
	bf, _ := ToFloat64(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}

// isIntegral reports whether v is an integer kind, as opposed to a float
// that happens to hold an integral value.
func isIntegral(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, *big.Int:
		return true
	}
	return false
}

// BigPrecision is the mantissa precision used for high-precision decimals.
const BigPrecision = 128

// ToBigFloat converts a numeric value to a new *big.Float.
func ToBigFloat(v any) *big.Float {
	out := new(big.Float).SetPrec(BigPrecision)
	switch val := v.(type) {
	case *big.Float:
		return out.Set(val)
	case *big.Int:
		return out.SetInt(val)
	case float64:
		return out.SetFloat64(val)
	case float32:
		return out.SetFloat64(float64(val))
	case uint64:
		return out.SetUint64(val)
	}
	if i, ok := ToInt64(v); ok {
		return out.SetInt64(i)
	}
	return out
}

// ParseNumber parses s as an int64 or float64. It backs string-to-number
// coercion in arithmetic.
func ParseNumber(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, true
	}
	return nil, false
}

// Format renders v as expression string concatenation and toString() do.
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case *big.Float:
		return val.Text('g', -1)
	case *big.Int:
		return val.String()
	case *Type:
		return val.Name
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + Format(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = Format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprintf("%v", v)
}

// convertTo converts v to Go type t for a parameter or a typed write.
// The second result is false when no sensible conversion exists.
func convertTo(v any, t reflect.Type) (any, bool) {
	out, score := convertScore(v, t)
	return out, score > 0
}

// Argument match scores, higher is more specific.
const (
	scoreNone       = 0
	scoreAny        = 1
	scoreConversion = 2
	scoreAssignable = 3
	scoreExact      = 4
)

// convertScore converts v to t and reports how specific the match was.
func convertScore(v any, t reflect.Type) (any, int) {
	if t == anyType {
		return v, scoreAny
	}
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return nil, scoreConversion
		}
		return nil, scoreNone
	}

	vt := reflect.TypeOf(v)
	if vt == t {
		return v, scoreExact
	}
	if vt.AssignableTo(t) {
		return v, scoreAssignable
	}

	if IsNumber(v) {
		if out, ok := convertNumber(v, t); ok {
			return out, scoreConversion
		}
		return nil, scoreNone
	}

	// []any into a typed slice, element by element.
	if t.Kind() == reflect.Slice && vt.Kind() == reflect.Slice {
		src := reflect.ValueOf(v)
		dst := reflect.MakeSlice(t, src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			elem, ok := convertTo(src.Index(i).Interface(), t.Elem())
			if !ok {
				return nil, scoreNone
			}
			dst.Index(i).Set(valueOrZero(elem, t.Elem()))
		}
		return dst.Interface(), scoreAny
	}

	if vt.ConvertibleTo(t) && vt.Kind() == t.Kind() {
		return reflect.ValueOf(v).Convert(t).Interface(), scoreConversion
	}
	return nil, scoreNone
}

// convertNumber converts a numeric value to numeric type t without
// silently losing information.
func convertNumber(v any, t reflect.Type) (any, bool) {
	switch t {
	case bigFloatType:
		return ToBigFloat(v), true
	case bigIntType:
		if bi, ok := v.(*big.Int); ok {
			return new(big.Int).Set(bi), true
		}
		if i, ok := ToInt64(v); ok {
			return big.NewInt(i), true
		}
		return nil, false
	}

	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		f, ok := ToFloat64(v)
		if !ok {
			return nil, false
		}
		return reflect.ValueOf(f).Convert(t).Interface(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := ToInt64(v)
		if !ok {
			return nil, false
		}
		rv := reflect.New(t).Elem()
		if rv.OverflowInt(i) {
			return nil, false
		}
		rv.SetInt(i)
		return rv.Interface(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, ok := ToInt64(v)
		if !ok || i < 0 {
			return nil, false
		}
		rv := reflect.New(t).Elem()
		if rv.OverflowUint(uint64(i)) {
			return nil, false
		}
		rv.SetUint(uint64(i))
		return rv.Interface(), true
	}
	return nil, false
}

// valueOrZero wraps v as a reflect.Value of type t, using the zero value
// for nil.
func valueOrZero(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(v)
}

// Reflected types used by signature tables.
var (
	anyType      = reflect.TypeOf((*any)(nil)).Elem()
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	bigFloatType = reflect.TypeOf((*big.Float)(nil))
	bigIntType   = reflect.TypeOf((*big.Int)(nil))

	// AnyType accepts every argument with the lowest specificity.
	AnyType = anyType
	// StringType is the Go string type.
	StringType = reflect.TypeOf("")
	// IntType is the expression integer type.
	IntType = reflect.TypeOf(int64(0))
	// FloatType is the expression floating point type.
	FloatType = reflect.TypeOf(float64(0))
	// BoolType is the Go bool type.
	BoolType = reflect.TypeOf(false)
	// ListType is the inline list type.
	ListType = reflect.TypeOf([]any(nil))
	// MapType is the inline map type.
	MapType = reflect.TypeOf(map[string]any(nil))
	// BigFloatType is the high-precision decimal type.
	BigFloatType = bigFloatType
	// BigIntType is the arbitrary-precision integer type.
	BigIntType = bigIntType
)
