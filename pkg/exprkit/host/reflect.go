package host

import (
	"fmt"
	"reflect"
	"sync"
)

// structValue adapts structs and pointers to structs through reflection.
//
// Member lookup tries, in order: an exported field named exactly `name`,
// the capitalised field `Name`, then a zero-argument method `name`,
// `Name`, `GetName` or `IsName`.
type structValue struct {
	rv reflect.Value
}

func (s structValue) Member(name string) (any, error) {
	p := planFor(s.rv.Type(), name)
	if p == nil {
		return zeroArgBuiltin(nil, s.rv.Interface(), name)
	}
	return p.get(s.rv)
}

func (s structValue) Index(any) (any, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotIndexable, s.rv.Type())
}

func (s structValue) Methods(name string) []*Func {
	if fns := methodsFor(s.rv.Type(), name); fns != nil {
		return fns
	}
	return builtinMethods(nil, name)
}

func (s structValue) SetMember(name string, value any) error {
	if s.rv.Kind() != reflect.Pointer {
		return fmt.Errorf("%w: %s is not addressable", ErrNotSettable, s.rv.Type())
	}

	if p := planFor(s.rv.Type(), name); p != nil && p.field != nil {
		f, err := s.rv.Elem().FieldByIndexErr(p.field)
		if err == nil && f.CanSet() {
			v, ok := convertTo(value, f.Type())
			if !ok {
				return fmt.Errorf("%w: %T into field %s (%s)", ErrNotSettable, value, name, f.Type())
			}
			f.Set(valueOrZero(v, f.Type()))
			return nil
		}
	}

	if fns := methodsFor(s.rv.Type(), "Set"+capitalize(name)); fns != nil {
		_, err := fns[0].Invoke(s.rv.Interface(), []any{value})
		return err
	}
	return fmt.Errorf("%w: %s.%s", ErrNotSettable, s.rv.Type(), name)
}

func (s structValue) SetIndex(key any, _ any) error {
	return fmt.Errorf("%w: %s[%v]", ErrNotSettable, s.rv.Type(), key)
}

// memberPlan is a resolved member read for one receiver type.
type memberPlan struct {
	name   string
	field  []int
	method int
}

func (p *memberPlan) get(rv reflect.Value) (any, error) {
	if p.field == nil {
		return callReflect(p.name, rv.Method(p.method), nil, nil)
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: reading %s", ErrNilValue, p.name)
		}
		rv = rv.Elem()
	}
	f, err := rv.FieldByIndexErr(p.field)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s", ErrNilValue, p.name)
	}
	return Normalize(f.Interface()), nil
}

type planKey struct {
	typ  reflect.Type
	name string
}

var (
	plans   sync.Map // planKey -> *memberPlan (nil when absent)
	methods sync.Map // planKey -> []*Func
)

// planFor resolves how to read member name from values of type rt.
func planFor(rt reflect.Type, name string) *memberPlan {
	key := planKey{rt, name}
	if p, ok := plans.Load(key); ok {
		return p.(*memberPlan)
	}
	p := buildPlan(rt, name)
	actual, _ := plans.LoadOrStore(key, p)
	return actual.(*memberPlan)
}

func buildPlan(rt reflect.Type, name string) *memberPlan {
	st := rt
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	upper := capitalize(name)

	if st.Kind() == reflect.Struct {
		for _, cand := range []string{name, upper} {
			if f, ok := st.FieldByName(cand); ok && f.IsExported() {
				return &memberPlan{name: name, field: f.Index}
			}
		}
	}

	for _, cand := range []string{name, upper, "Get" + upper, "Is" + upper} {
		m, ok := rt.MethodByName(cand)
		if !ok || m.Type.NumIn() != 1 || m.Type.NumOut() == 0 || checkResults(m.Type) != nil {
			continue
		}
		if m.Type.NumOut() == 1 && m.Type.Out(0) == errorType {
			continue
		}
		return &memberPlan{name: name, method: m.Index}
	}
	return nil
}

// methodsFor returns the method overload set for name on rt.
func methodsFor(rt reflect.Type, name string) []*Func {
	key := planKey{rt, name}
	if fns, ok := methods.Load(key); ok {
		return fns.([]*Func)
	}

	var fns []*Func
	for _, cand := range []string{name, capitalize(name)} {
		m, ok := rt.MethodByName(cand)
		if !ok {
			continue
		}
		if f, ok := methodFunc(rt, m.Index); ok {
			fns = []*Func{f}
			break
		}
	}
	actual, _ := methods.LoadOrStore(key, fns)
	return actual.([]*Func)
}

// getterKind selects how a Getter reads its receiver.
type getterKind uint8

const (
	getMapKey getterKind = iota
	getStruct
	getBuiltin
	getStatic
)

// Getter is a member read bound to one concrete receiver shape.
//
// Get reports ok=false when the receiver no longer has the shape the
// getter was bound to, or when the member is absent. Callers treat that as
// a cache miss and fall back to dynamic lookup.
type Getter struct {
	name string
	kind getterKind
	typ  reflect.Type
	plan *memberPlan
	fn   *Func
	stat *Type
}

// Bind builds a Getter for member name of recv. It returns false when recv
// has no fixed shape to bind to, such as a custom Value implementation.
func Bind(recv any, name string) (*Getter, bool) {
	switch r := recv.(type) {
	case nil:
		return nil, false
	case *Type:
		if _, ok := r.Fields[name]; !ok {
			return nil, false
		}
		return &Getter{name: name, kind: getStatic, stat: r}, true
	case Value:
		return nil, false
	case map[string]any:
		if _, ok := r[name]; !ok {
			return nil, false
		}
		return &Getter{name: name, kind: getMapKey}, true
	}

	rt := reflect.TypeOf(recv)
	switch Of(recv).(type) {
	case structValue:
		if p := planFor(rt, name); p != nil {
			return &Getter{name: name, kind: getStruct, typ: rt, plan: p}, true
		}
	case stringValue:
		if f := zeroArg(stringBuiltins, name); f != nil {
			return &Getter{name: name, kind: getBuiltin, typ: rt, fn: f}, true
		}
	case listValue:
		if f := zeroArg(listBuiltins, name); f != nil {
			return &Getter{name: name, kind: getBuiltin, typ: rt, fn: f}, true
		}
	}
	return nil, false
}

// Name returns the member name the getter reads.
func (g *Getter) Name() string { return g.name }

// Get reads the bound member from recv.
func (g *Getter) Get(recv any) (any, bool, error) {
	switch g.kind {
	case getMapKey:
		m, ok := recv.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		v, ok := m[g.name]
		return v, ok, nil
	case getStatic:
		t, ok := recv.(*Type)
		if !ok || t != g.stat {
			return nil, false, nil
		}
		return t.Fields[g.name], true, nil
	}

	if recv == nil || reflect.TypeOf(recv) != g.typ {
		return nil, false, nil
	}
	if g.kind == getBuiltin {
		v, err := g.fn.Call(recv, nil)
		return v, err == nil, err
	}
	v, err := g.plan.get(reflect.ValueOf(recv))
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
