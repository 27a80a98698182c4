package host

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

var (
	defaultTypes     *Types
	defaultTypesOnce sync.Once
)

// DefaultTypes returns the process-wide built-in type set. It is built on
// first use and must be treated as read-only; call Clone to extend it.
func DefaultTypes() *Types {
	defaultTypesOnce.Do(func() {
		defaultTypes = NewTypes()
		defaultTypes.Register(builtinTypes()...)
	})
	return defaultTypes
}

func builtinTypes() []*Type {
	return []*Type{
		{
			Name:    "lang.String",
			GoType:  StringType,
			Convert: func(v any) (any, error) { return Format(v), nil },
			Funcs: funcs(
				MustFunc("valueOf", func(v any) string { return Format(v) }),
				MustFunc("format", fmt.Sprintf),
				MustFunc("join", func(sep string, items []any) string {
					parts := make([]string, len(items))
					for i, it := range items {
						parts[i] = Format(it)
					}
					return strings.Join(parts, sep)
				}),
			),
			Constructors: []*Func{
				MustFunc("String", func() string { return "" }),
				MustFunc("String", func(v any) string { return Format(v) }),
			},
		},
		{
			Name:     "lang.Integer",
			GoType:   IntType,
			Aliases:  []string{"int", "long", "Long"},
			Convert:  castInt,
			Instance: isMachineInt,
			Fields: map[string]any{
				"MAX_VALUE": int64(math.MaxInt64),
				"MIN_VALUE": int64(math.MinInt64),
			},
			Funcs: funcs(
				MustFunc("parseInt", func(s string) (int64, error) {
					return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
				}),
				MustFunc("valueOf", castInt),
			),
		},
		{
			Name:     "lang.Double",
			GoType:   FloatType,
			Aliases:  []string{"double", "float", "Float"},
			Convert:  castFloat,
			Instance: func(v any) bool {
				switch v.(type) {
				case float64, float32:
					return true
				}
				return false
			},
			Fields: map[string]any{
				"MAX_VALUE": math.MaxFloat64,
				"MIN_VALUE": math.SmallestNonzeroFloat64,
			},
			Funcs: funcs(
				MustFunc("parseDouble", func(s string) (float64, error) {
					return strconv.ParseFloat(strings.TrimSpace(s), 64)
				}),
				MustFunc("valueOf", castFloat),
			),
		},
		{
			Name:    "lang.Boolean",
			GoType:  BoolType,
			Aliases: []string{"boolean"},
			Convert: castBool,
			Funcs: funcs(
				MustFunc("parseBoolean", func(s string) bool {
					return strings.EqualFold(strings.TrimSpace(s), "true")
				}),
			),
		},
		{
			Name:     "lang.Number",
			Instance: IsNumber,
			Convert: func(v any) (any, error) {
				if n, ok := toNumber(v); ok {
					return n, nil
				}
				return nil, errors.New("not numeric")
			},
		},
		{
			Name:     "lang.Object",
			GoType:   AnyType,
			Instance: func(v any) bool { return v != nil },
			Convert:  func(v any) (any, error) { return v, nil },
		},
		{
			Name: "lang.Math",
			Fields: map[string]any{
				"PI": math.Pi,
				"E":  math.E,
			},
			Funcs: funcs(
				MustFunc("abs", func(x int64) int64 {
					if x < 0 {
						return -x
					}
					return x
				}),
				MustFunc("abs", math.Abs),
				MustFunc("max", func(a, b int64) int64 { return max(a, b) }),
				MustFunc("max", math.Max),
				MustFunc("min", func(a, b int64) int64 { return min(a, b) }),
				MustFunc("min", math.Min),
				MustFunc("sqrt", math.Sqrt),
				MustFunc("pow", math.Pow),
				MustFunc("floor", math.Floor),
				MustFunc("ceil", math.Ceil),
				MustFunc("round", func(x float64) int64 { return int64(math.Round(x)) }),
			),
		},
		{
			Name:    "math.BigDecimal",
			GoType:  BigFloatType,
			Convert: castBigFloat,
			Constructors: []*Func{
				MustFunc("BigDecimal", func(i int64) *big.Float { return ToBigFloat(i) }),
				MustFunc("BigDecimal", func(f float64) *big.Float { return ToBigFloat(f) }),
				MustFunc("BigDecimal", func(s string) (*big.Float, error) { return parseBigFloat(s) }),
			},
		},
		{
			Name:    "math.BigInteger",
			GoType:  BigIntType,
			Convert: castBigInt,
			Constructors: []*Func{
				MustFunc("BigInteger", func(i int64) *big.Int { return big.NewInt(i) }),
				MustFunc("BigInteger", func(s string) (*big.Int, error) { return parseBigInt(s) }),
			},
		},
		{
			Name:     "util.List",
			GoType:   ListType,
			Aliases:  []string{"ArrayList"},
			Instance: kindIs(reflect.Slice, reflect.Array),
			Funcs: funcs(
				MustFunc("of", func(items ...any) []any { return append([]any{}, items...) }),
			),
			Constructors: []*Func{
				MustFunc("List", func() []any { return []any{} }),
				MustFunc("List", func(capacity int64) []any { return make([]any, 0, capacity) }),
			},
		},
		{
			Name:     "util.Map",
			GoType:   MapType,
			Aliases:  []string{"HashMap"},
			Instance: kindIs(reflect.Map),
			Constructors: []*Func{
				MustFunc("Map", func() map[string]any { return map[string]any{} }),
			},
		},
	}
}

func isMachineInt(v any) bool {
	_, isBig := v.(*big.Int)
	return isIntegral(v) && !isBig
}

func funcs(fns ...*Func) map[string][]*Func {
	return methodTable(fns...)
}

func kindIs(kinds ...reflect.Kind) func(any) bool {
	return func(v any) bool {
		if v == nil {
			return false
		}
		k := reflect.TypeOf(v).Kind()
		for _, want := range kinds {
			if k == want {
				return true
			}
		}
		return false
	}
}

// toNumber normalizes numeric values and parses numeric strings.
func toNumber(v any) (any, bool) {
	if IsNumber(v) {
		return Normalize(v), true
	}
	if s, ok := v.(string); ok {
		return ParseNumber(s)
	}
	return nil, false
}

func castInt(v any) (any, error) {
	n, ok := toNumber(v)
	if !ok {
		return nil, fmt.Errorf("%s is not numeric", describe(v))
	}
	if i, ok := ToInt64(n); ok {
		return i, nil
	}
	f, _ := ToFloat64(n)
	if math.IsNaN(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("%v overflows int64", n)
	}
	return int64(f), nil
}

func castFloat(v any) (any, error) {
	n, ok := toNumber(v)
	if !ok {
		return nil, fmt.Errorf("%s is not numeric", describe(v))
	}
	f, _ := ToFloat64(n)
	return f, nil
}

func castBool(v any) (any, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("%s is not boolean", describe(v))
}

func castBigFloat(v any) (any, error) {
	if s, ok := v.(string); ok {
		return parseBigFloat(s)
	}
	if !IsNumber(v) {
		return nil, fmt.Errorf("%s is not numeric", describe(v))
	}
	return ToBigFloat(v), nil
}

func castBigInt(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return parseBigInt(val)
	case *big.Int:
		return new(big.Int).Set(val), nil
	case *big.Float:
		i, _ := val.Int(nil)
		return i, nil
	}
	if i, ok := ToInt64(v); ok {
		return big.NewInt(i), nil
	}
	if f, ok := ToFloat64(v); ok {
		i, _ := big.NewFloat(math.Trunc(f)).Int(nil)
		return i, nil
	}
	return nil, fmt.Errorf("%s is not numeric", describe(v))
}

func parseBigFloat(s string) (*big.Float, error) {
	f, ok := new(big.Float).SetPrec(BigPrecision).SetString(strings.TrimSpace(s))
	if !ok {
		return nil, fmt.Errorf("invalid decimal %q", s)
	}
	return f, nil
}

func parseBigInt(s string) (*big.Int, error) {
	i, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return i, nil
}
