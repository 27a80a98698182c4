package host

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Built-in method tables for native values. They are populated during
// package initialization and only read afterwards.
var (
	stringBuiltins = methodTable(
		builtin("length", nil, func(s string, _ []any) (any, error) {
			return int64(utf8.RuneCountInString(s)), nil
		}),
		builtin("isEmpty", nil, func(s string, _ []any) (any, error) { return s == "", nil }),
		builtin("toUpperCase", nil, func(s string, _ []any) (any, error) { return strings.ToUpper(s), nil }),
		builtin("toLowerCase", nil, func(s string, _ []any) (any, error) { return strings.ToLower(s), nil }),
		builtin("trim", nil, func(s string, _ []any) (any, error) { return strings.TrimSpace(s), nil }),
		builtin("startsWith", params(StringType), func(s string, a []any) (any, error) {
			return strings.HasPrefix(s, a[0].(string)), nil
		}),
		builtin("endsWith", params(StringType), func(s string, a []any) (any, error) {
			return strings.HasSuffix(s, a[0].(string)), nil
		}),
		builtin("contains", params(StringType), func(s string, a []any) (any, error) {
			return strings.Contains(s, a[0].(string)), nil
		}),
		builtin("indexOf", params(StringType), func(s string, a []any) (any, error) {
			return runeIndex(s, strings.Index(s, a[0].(string))), nil
		}),
		builtin("lastIndexOf", params(StringType), func(s string, a []any) (any, error) {
			return runeIndex(s, strings.LastIndex(s, a[0].(string))), nil
		}),
		builtin("substring", params(IntType), func(s string, a []any) (any, error) {
			runes := []rune(s)
			return sliceRunes(runes, a[0].(int64), int64(len(runes)))
		}),
		builtin("substring", params(IntType, IntType), func(s string, a []any) (any, error) {
			return sliceRunes([]rune(s), a[0].(int64), a[1].(int64))
		}),
		builtin("charAt", params(IntType), func(s string, a []any) (any, error) {
			return stringValue(s).Index(a[0])
		}),
		builtin("split", params(StringType), func(s string, a []any) (any, error) {
			parts := strings.Split(s, a[0].(string))
			out := make([]any, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return out, nil
		}),
		builtin("replace", params(StringType, StringType), func(s string, a []any) (any, error) {
			return strings.ReplaceAll(s, a[0].(string), a[1].(string)), nil
		}),
		builtin("concat", params(StringType), func(s string, a []any) (any, error) {
			return s + a[0].(string), nil
		}),
		builtin("equalsIgnoreCase", params(StringType), func(s string, a []any) (any, error) {
			return strings.EqualFold(s, a[0].(string)), nil
		}),
		builtin("matches", params(StringType), func(s string, a []any) (any, error) {
			re, err := regexp.Compile("^(?:" + a[0].(string) + ")$")
			if err != nil {
				return nil, fmt.Errorf("matches: %w", err)
			}
			return re.MatchString(s), nil
		}),
	)

	listBuiltins = methodTable(
		builtin("size", nil, func(l reflect.Value, _ []any) (any, error) { return int64(l.Len()), nil }),
		builtin("length", nil, func(l reflect.Value, _ []any) (any, error) { return int64(l.Len()), nil }),
		builtin("isEmpty", nil, func(l reflect.Value, _ []any) (any, error) { return l.Len() == 0, nil }),
		builtin("get", params(IntType), func(l reflect.Value, a []any) (any, error) {
			return listValue{rv: l}.Index(a[0])
		}),
		builtin("contains", params(AnyType), func(l reflect.Value, a []any) (any, error) {
			return listIndexOf(l, a[0]) >= 0, nil
		}),
		builtin("indexOf", params(AnyType), func(l reflect.Value, a []any) (any, error) {
			return int64(listIndexOf(l, a[0])), nil
		}),
	)

	mapBuiltins = methodTable(
		builtin("size", nil, func(m reflect.Value, _ []any) (any, error) { return int64(m.Len()), nil }),
		builtin("isEmpty", nil, func(m reflect.Value, _ []any) (any, error) { return m.Len() == 0, nil }),
		builtin("containsKey", params(AnyType), func(m reflect.Value, a []any) (any, error) {
			_, ok := mapLookup(m, a[0])
			return ok, nil
		}),
		builtin("get", params(AnyType), func(m reflect.Value, a []any) (any, error) {
			v, _ := mapLookup(m, a[0])
			return v, nil
		}),
		builtin("keySet", nil, func(m reflect.Value, _ []any) (any, error) {
			keys := sortedKeys(m)
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = k.Interface()
			}
			return out, nil
		}),
		builtin("values", nil, func(m reflect.Value, _ []any) (any, error) {
			keys := sortedKeys(m)
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = m.MapIndex(k).Interface()
			}
			return out, nil
		}),
	)

	universalBuiltins = methodTable(
		builtin("toString", nil, func(v any, _ []any) (any, error) { return Format(v), nil }),
		builtin("equals", params(AnyType), func(v any, a []any) (any, error) { return Equal(v, a[0]), nil }),
	)
)

// builtin declares one built-in overload. Lists and maps receive their
// receiver as a reflect.Value so every slice and map type shares one table.
func builtin[R any](name string, ps []reflect.Type, fn func(recv R, args []any) (any, error)) *Func {
	if ps == nil {
		ps = []reflect.Type{}
	}
	return &Func{
		Name:   name,
		Params: ps,
		Call: func(recv any, args []any) (any, error) {
			var r any = recv
			switch any(*new(R)).(type) {
			case reflect.Value:
				r = reflect.ValueOf(recv)
			}
			typed, ok := r.(R)
			if !ok {
				return nil, fmt.Errorf("%w: %s on %T", ErrNoMethod, name, recv)
			}
			return fn(typed, args)
		},
	}
}

func params(ts ...reflect.Type) []reflect.Type { return ts }

func methodTable(fns ...*Func) map[string][]*Func {
	table := make(map[string][]*Func, len(fns))
	for _, f := range fns {
		table[f.Name] = append(table[f.Name], f)
	}
	return table
}

// builtinMethods returns the overloads for name from table, falling back
// to the universal methods every value has.
func builtinMethods(table map[string][]*Func, name string) []*Func {
	if fns := table[name]; fns != nil {
		return fns
	}
	return universalBuiltins[name]
}

// zeroArg returns the zero-argument overload of name, if any.
func zeroArg(table map[string][]*Func, name string) *Func {
	for _, f := range builtinMethods(table, name) {
		if len(f.Params) == 0 && !f.Variadic {
			return f
		}
	}
	return nil
}

// zeroArgBuiltin reads member name as a zero-argument builtin call, so
// `s.length` behaves like `s.length()`.
func zeroArgBuiltin(table map[string][]*Func, recv any, name string) (any, error) {
	f := zeroArg(table, name)
	if f == nil {
		return nil, fmt.Errorf("%w: %s on %T", ErrNoMember, name, recv)
	}
	return f.Call(recv, nil)
}

// runeIndex converts a byte offset into a rune offset, keeping -1.
func runeIndex(s string, byteIdx int) int64 {
	if byteIdx < 0 {
		return -1
	}
	return int64(utf8.RuneCountInString(s[:byteIdx]))
}

func sliceRunes(runes []rune, from, to int64) (any, error) {
	if from < 0 || to > int64(len(runes)) || from > to {
		return nil, fmt.Errorf("%w: substring(%d, %d) of length %d", ErrIndexOutOfRange, from, to, len(runes))
	}
	return string(runes[from:to]), nil
}

func listIndexOf(l reflect.Value, v any) int {
	for i := 0; i < l.Len(); i++ {
		if Equal(l.Index(i).Interface(), v) {
			return i
		}
	}
	return -1
}

func mapLookup(m reflect.Value, key any) (any, bool) {
	k, ok := convertTo(key, m.Type().Key())
	if !ok && m.Type().Key().Kind() == reflect.String {
		k, ok = keyString(key), true
	}
	if !ok {
		return nil, false
	}
	v := m.MapIndex(valueOrZero(k, m.Type().Key()).Convert(m.Type().Key()))
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return Format(keys[i].Interface()) < Format(keys[j].Interface())
	})
	return keys
}
