package host

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/randalmurphal/exprkit/pkg/exprkit/registry"
)

// Type describes a host type that expressions can name: as a cast target
// `(int) x`, in `instanceof` checks, with `new T(...)`, or as the root of a
// static member path such as `lang.Math.max(a, b)`.
type Type struct {
	// Name is the fully qualified name, e.g. "lang.Math".
	Name string

	// GoType is the runtime representation of instances, or nil for types
	// that only carry static members.
	GoType reflect.Type

	// Aliases are extra short names registered alongside the short name.
	Aliases []string

	// Fields holds static members.
	Fields map[string]any

	// Funcs holds static function overload sets.
	Funcs map[string][]*Func

	// Constructors are the overloads `new T(...)` chooses from.
	Constructors []*Func

	// Convert implements casts. When nil, a cast succeeds only for values
	// that already satisfy IsInstance.
	Convert func(v any) (any, error)

	// Instance overrides the default IsInstance check.
	Instance func(v any) bool
}

// Short returns the unqualified name, e.g. "Math" for "lang.Math".
func (t *Type) Short() string {
	if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
		return t.Name[i+1:]
	}
	return t.Name
}

// Package returns the qualifying prefix, e.g. "lang" for "lang.Math".
func (t *Type) Package() string {
	if i := strings.LastIndexByte(t.Name, '.'); i >= 0 {
		return t.Name[:i]
	}
	return ""
}

func (t *Type) String() string { return t.Name }

// Member returns a static field, or the result of a zero-argument static
// function of that name.
func (t *Type) Member(name string) (any, error) {
	if v, ok := t.Fields[name]; ok {
		return v, nil
	}
	for _, f := range t.Funcs[name] {
		if len(f.Params) == 0 && !f.Variadic {
			return f.Call(nil, nil)
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrNoMember, t.Name, name)
}

func (t *Type) Index(any) (any, error) {
	return nil, fmt.Errorf("%w: type %s", ErrNotIndexable, t.Name)
}

func (t *Type) Methods(name string) []*Func {
	return t.Funcs[name]
}

// IsInstance reports whether v is an instance of t.
func (t *Type) IsInstance(v any) bool {
	if t.Instance != nil {
		return t.Instance(v)
	}
	if v == nil || t.GoType == nil {
		return false
	}
	vt := reflect.TypeOf(v)
	if t.GoType.Kind() == reflect.Interface {
		return vt.Implements(t.GoType)
	}
	return vt == t.GoType
}

// Cast converts v to t.
func (t *Type) Cast(v any) (any, error) {
	if t.Convert != nil {
		out, err := t.Convert(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s to %s: %w", ErrCast, describe(v), t.Name, err)
		}
		return out, nil
	}
	if v == nil || t.IsInstance(v) {
		return v, nil
	}
	if t.GoType != nil {
		if out, ok := convertTo(v, t.GoType); ok {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s to %s", ErrCast, describe(v), t.Name)
}

// New constructs an instance with the best matching constructor.
func (t *Type) New(args []any) (any, error) {
	f, converted, err := t.SelectConstructor(args)
	if err != nil {
		return nil, err
	}
	return f.Call(nil, converted)
}

// SelectConstructor resolves the constructor overload for args.
func (t *Type) SelectConstructor(args []any) (*Func, []any, error) {
	if len(t.Constructors) == 0 {
		return nil, nil, fmt.Errorf("%w: %s has no constructors", ErrNoMethod, t.Name)
	}
	return Select(t.Constructors, args)
}

func describe(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

// Types is a set of host types addressable by qualified and short names.
// It is safe for concurrent use.
type Types struct {
	qualified *registry.Registry[string, *Type]
	short     *registry.Registry[string, *Type]
}

// NewTypes creates an empty type set.
func NewTypes() *Types {
	return &Types{
		qualified: registry.New[string, *Type](),
		short:     registry.New[string, *Type](),
	}
}

// Register adds t under its qualified name, its short name and aliases.
// A later registration with the same short name replaces the earlier one.
func (ts *Types) Register(types ...*Type) {
	for _, t := range types {
		ts.qualified.Register(t.Name, t)
		ts.short.Register(t.Short(), t)
		for _, a := range t.Aliases {
			ts.short.Register(a, t)
		}
	}
}

// Lookup finds a type by short name, alias or qualified name.
func (ts *Types) Lookup(name string) (*Type, bool) {
	if t, ok := ts.short.Get(name); ok {
		return t, true
	}
	return ts.qualified.Get(name)
}

// Qualified finds a type by its fully qualified name only.
func (ts *Types) Qualified(name string) (*Type, bool) {
	return ts.qualified.Get(name)
}

// InPackage returns the types whose package is pkg, sorted by name.
func (ts *Types) InPackage(pkg string) []*Type {
	var out []*Type
	ts.qualified.Range(func(_ string, t *Type) bool {
		if t.Package() == pkg {
			out = append(out, t)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every short name and alias, sorted.
func (ts *Types) Names() []string {
	names := ts.short.Keys()
	sort.Strings(names)
	return names
}

// Clone returns an independent copy that can be extended without
// affecting ts.
func (ts *Types) Clone() *Types {
	return &Types{
		qualified: ts.qualified.Clone(),
		short:     ts.short.Clone(),
	}
}
