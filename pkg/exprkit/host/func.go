package host

import (
	"fmt"
	"reflect"
	"strings"
)

// Func is one callable overload with a declared signature.
//
// Params lists the declared parameter types. When Variadic is set, the
// last entry is the element type of the variadic tail. Call receives the
// receiver (nil for static functions and constructors) and arguments
// already converted to the declared types.
type Func struct {
	Name     string
	Params   []reflect.Type
	Variadic bool
	Call     func(recv any, args []any) (any, error)
}

// String renders the signature, e.g. "substring(int64, int64)".
func (f *Func) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.String()
		if f.Variadic && i == len(f.Params)-1 {
			parts[i] = "..." + parts[i]
		}
	}
	return f.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Match converts args to f's parameter types. It reports the total match
// score (higher is more specific) and false when some argument does not
// fit.
func (f *Func) Match(args []any) (int, []any, bool) {
	fixed := len(f.Params)
	if f.Variadic {
		fixed--
		if len(args) < fixed {
			return 0, nil, false
		}
	} else if len(args) != fixed {
		return 0, nil, false
	}

	converted := make([]any, len(args))
	total := 0
	for i, arg := range args {
		pt := f.Params[min(i, len(f.Params)-1)]
		out, score := convertScore(arg, pt)
		if score == scoreNone {
			return 0, nil, false
		}
		converted[i] = out
		total += score
	}
	if f.Variadic {
		// Prefer fixed arity over a variadic overload with the same fit.
		total--
	}
	return total, converted, true
}

// Invoke matches args against f and calls it.
func (f *Func) Invoke(recv any, args []any) (any, error) {
	_, converted, ok := f.Match(args)
	if !ok {
		return nil, fmt.Errorf("%w: %s with %d argument(s)", ErrNoOverload, f, len(args))
	}
	return f.Call(recv, converted)
}

// Select picks the most specific overload for args.
//
// Each argument scores exact type match over interface assignability over
// numeric conversion over an untyped parameter. The highest total wins.
// Among equal totals the overload declared first wins, unless the tied
// overloads declare identical parameter lists, which is ambiguous.
func Select(fns []*Func, args []any) (*Func, []any, error) {
	if len(fns) == 0 {
		return nil, nil, ErrNoMethod
	}

	var (
		best      *Func
		bestArgs  []any
		bestScore = -1
		ambiguous bool
	)
	for _, f := range fns {
		score, converted, ok := f.Match(args)
		if !ok {
			continue
		}
		switch {
		case score > bestScore:
			best, bestArgs, bestScore, ambiguous = f, converted, score, false
		case score == bestScore && sameSignature(best, f):
			ambiguous = true
		}
	}

	if best == nil {
		return nil, nil, fmt.Errorf("%w: %s with %s", ErrNoOverload, fns[0].Name, describeArgs(args))
	}
	if ambiguous {
		return nil, nil, fmt.Errorf("%w: %s", ErrAmbiguous, best)
	}
	return best, bestArgs, nil
}

// sameSignature reports whether two overloads declare identical parameters.
func sameSignature(a, b *Func) bool {
	if a.Variadic != b.Variadic || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}

func describeArgs(args []any) string {
	if len(args) == 0 {
		return "no arguments"
	}
	parts := make([]string, len(args))
	for i, a := range args {
		if a == nil {
			parts[i] = "nil"
			continue
		}
		parts[i] = reflect.TypeOf(a).String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// FuncOf wraps a Go function value as a static Func. The function may
// return a value, an error, or a value and an error.
func FuncOf(name string, fn any) (*Func, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("FuncOf %s: %T is not a function", name, fn)
	}
	ft := rv.Type()
	if err := checkResults(ft); err != nil {
		return nil, fmt.Errorf("FuncOf %s: %w", name, err)
	}

	params := make([]reflect.Type, ft.NumIn())
	for i := range params {
		params[i] = ft.In(i)
	}
	if ft.IsVariadic() {
		params[len(params)-1] = params[len(params)-1].Elem()
	}

	return &Func{
		Name:     name,
		Params:   params,
		Variadic: ft.IsVariadic(),
		Call: func(_ any, args []any) (any, error) {
			return callReflect(name, rv, params, args)
		},
	}, nil
}

// MustFunc is FuncOf for static tables; it panics on a bad function value.
func MustFunc(name string, fn any) *Func {
	f, err := FuncOf(name, fn)
	if err != nil {
		panic(err)
	}
	return f
}

// methodFunc wraps method index idx of receiver type rt.
func methodFunc(rt reflect.Type, idx int) (*Func, bool) {
	m := rt.Method(idx)
	if checkResults(m.Type) != nil {
		return nil, false
	}
	// m.Type includes the receiver as the first input.
	params := make([]reflect.Type, m.Type.NumIn()-1)
	for i := range params {
		params[i] = m.Type.In(i + 1)
	}
	if m.Type.IsVariadic() {
		params[len(params)-1] = params[len(params)-1].Elem()
	}
	name := m.Name
	return &Func{
		Name:     name,
		Params:   params,
		Variadic: m.Type.IsVariadic(),
		Call: func(recv any, args []any) (any, error) {
			return callReflect(name, reflect.ValueOf(recv).Method(idx), params, args)
		},
	}, true
}

// checkResults accepts functions returning nothing, a value, an error,
// or a value followed by an error.
func checkResults(ft reflect.Type) error {
	switch ft.NumOut() {
	case 0, 1:
		return nil
	case 2:
		if ft.Out(1) == errorType {
			return nil
		}
	}
	return fmt.Errorf("unsupported result signature %s", ft)
}

// callReflect invokes fn and converts a panic into an error.
func callReflect(name string, fn reflect.Value, params []reflect.Type, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", name, r)
		}
	}()

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = valueOrZero(a, params[min(i, len(params)-1)])
	}
	out := fn.Call(in)

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type() == errorType {
			if e, _ := out[0].Interface().(error); e != nil {
				return nil, e
			}
			return nil, nil
		}
		return Normalize(out[0].Interface()), nil
	}
	if e, _ := out[1].Interface().(error); e != nil {
		return nil, e
	}
	return Normalize(out[0].Interface()), nil
}
