package expr

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"sort"

	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
	"github.com/randalmurphal/exprkit/pkg/exprkit/scope"
)

// value evaluates an operand node.
func (st *state) value(n *Node) (any, error) {
	var (
		v   any
		err error
	)
	switch n.Kind {
	case KindLiteral:
		if n.path == nil {
			return n.Value, nil
		}
		v = n.Value
	case KindIdentifier:
		v, err = st.resolveNode(n, nil, false)
		if err != nil {
			return nil, err
		}
		return st.prefixed(n, v)
	case KindSubstatement:
		v, err = n.sub.exec(st)
	case KindCollection:
		v, err = st.collection(n)
	case KindFold:
		v, err = st.fold(n)
	case KindNew:
		v, err = st.construct(n)
	case KindCast:
		v, err = st.cast(n)
	case KindAssign:
		v, err = st.assign(n)
	case KindIncDec:
		v, err = st.incDec(n)
	case KindIf:
		v, err = st.ifBlock(n)
	case KindWhile:
		v, err = st.whileBlock(n)
	case KindForeach:
		v, err = st.foreach(n)
	case KindFor:
		v, err = st.forBlock(n)
	case KindWith:
		v, err = st.withBlock(n)
	case KindReturn:
		return st.returnValue(n)
	case KindAssert:
		v, err = st.assert(n)
	case KindIntercept:
		v, err = st.intercept(n)
	default:
		return nil, fmt.Errorf("cannot evaluate %s node", n.Kind)
	}
	if err != nil {
		return nil, err
	}
	if n.path != nil {
		if v, err = st.resolveNode(n, v, true); err != nil {
			return nil, err
		}
	}
	return st.prefixed(n, v)
}

// prefixed applies unary prefix flags carried by n.
func (st *state) prefixed(n *Node, v any) (any, error) {
	flags := n.Flags & (FlagMinus | FlagInvert | FlagNegate)
	if flags == 0 {
		return v, nil
	}
	out, err := unary(flags, v)
	if err != nil {
		op := "!"
		switch {
		case flags.Has(FlagMinus):
			op = "-"
		case flags.Has(FlagInvert):
			op = "~"
		}
		return nil, &TypeError{Op: op, Left: describe(v), Span: n.Span, Err: err}
	}
	return out, nil
}

func (st *state) collection(n *Node) (any, error) {
	spec := n.coll
	if spec.isMap {
		m := make(map[string]any, len(spec.elems))
		for i, elem := range spec.elems {
			k, err := spec.keys[i].exec(st)
			if err != nil {
				return nil, err
			}
			v, err := elem.exec(st)
			if err != nil {
				return nil, err
			}
			if s, ok := k.(string); ok {
				m[s] = v
			} else {
				m[host.Format(k)] = v
			}
		}
		return m, nil
	}
	list := make([]any, len(spec.elems))
	for i, elem := range spec.elems {
		v, err := elem.exec(st)
		if err != nil {
			return nil, err
		}
		list[i] = v
	}
	return list, nil
}

// childScope opens a nested scope for loop and fold bodies.
func (st *state) childScope() *scope.MapScope {
	return scope.New(st.sc)
}

// iterate calls fn for each element of a foldable or iterable value:
// lists and arrays by element, maps by sorted key, strings by character and
// integers n as 1..n.
func iterate(v any, fn func(item any) (bool, error)) error {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range val {
			if more, err := fn(item); err != nil || !more {
				return err
			}
		}
		return nil
	case string:
		for _, r := range val {
			if more, err := fn(string(r)); err != nil || !more {
				return err
			}
		}
		return nil
	case int64:
		for i := int64(1); i <= val; i++ {
			if more, err := fn(i); err != nil || !more {
				return err
			}
		}
		return nil
	case *big.Int:
		if !val.IsInt64() {
			return fmt.Errorf("%w: cannot iterate %s", ErrTypeMismatch, val)
		}
		return iterate(val.Int64(), fn)
	}

	if i, ok := host.ToInt64(v); ok && host.IsNumber(v) {
		return iterate(i, fn)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if more, err := fn(host.Normalize(rv.Index(i).Interface())); err != nil || !more {
				return err
			}
		}
		return nil
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return host.Format(keys[i].Interface()) < host.Format(keys[j].Interface())
		})
		for _, k := range keys {
			if more, err := fn(host.Normalize(k.Interface())); err != nil || !more {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: cannot iterate %s", ErrTypeMismatch, describe(v))
}

// fold projects each element of the source collection, optionally
// filtered. Inside the projection the element is both the context object
// and the variable $.
func (st *state) fold(n *Node) (any, error) {
	spec := n.fold
	src, err := spec.source.exec(st)
	if err != nil {
		return nil, err
	}
	out := []any{}
	err = iterate(src, func(item any) (bool, error) {
		child := st.childScope()
		if err := child.Define(elemName, item); err != nil {
			return false, err
		}
		inner := st.with(item, child)
		if spec.filter != nil {
			keep, err := spec.filter.exec(inner)
			if err != nil || !IsTruthy(keep) {
				return err == nil, err
			}
		}
		v, err := spec.expr.exec(inner)
		if err != nil {
			return false, err
		}
		out = append(out, v)
		return true, nil
	})
	if err != nil {
		return nil, wrapIteration(n, err)
	}
	return out, nil
}

// wrapIteration attaches the node's position to a bare iteration error.
func wrapIteration(n *Node, err error) error {
	if errors.Is(err, ErrTypeMismatch) && !isPositioned(err) {
		return &TypeError{Op: n.Kind.String(), Left: err.Error(), Span: n.Span, Err: ErrTypeMismatch}
	}
	return err
}

// isPositioned reports whether err already carries a source span.
func isPositioned(err error) bool {
	var (
		te *TypeError
		re *ResolutionError
		ie *InvocationError
		xe *IndexError
		rs *returnSignal
	)
	return errors.As(err, &te) || errors.As(err, &re) || errors.As(err, &ie) || errors.As(err, &xe) || errors.As(err, &rs)
}

func (st *state) args(units []*Unit) ([]any, error) {
	if len(units) == 0 {
		return nil, nil
	}
	args := make([]any, len(units))
	for i, u := range units {
		v, err := u.exec(st)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (st *state) cast(n *Node) (any, error) {
	v, err := st.value(n.inner)
	if err != nil {
		return nil, err
	}
	out, err := n.typ.Cast(v)
	if err != nil {
		return nil, &TypeError{
			Op:   "(" + n.typ.Short() + ")",
			Left: describe(v),
			Span: n.Span,
			Err:  fmt.Errorf("%w: %w", ErrTypeMismatch, err),
		}
	}
	return out, nil
}

func (st *state) ifBlock(n *Node) (any, error) {
	spec := n.block
	for i, cond := range spec.conds {
		c, err := cond.exec(st)
		if err != nil {
			return nil, err
		}
		if IsTruthy(c) {
			return spec.bodies[i].exec(st)
		}
	}
	if spec.orElse != nil {
		return spec.orElse.exec(st)
	}
	return nil, nil
}

func (st *state) whileBlock(n *Node) (any, error) {
	spec := n.block
	for {
		c, err := spec.conds[0].exec(st)
		if err != nil {
			return nil, err
		}
		if !IsTruthy(c) {
			return nil, nil
		}
		if _, err := spec.bodies[0].exec(st); err != nil {
			return nil, err
		}
	}
}

// foreach runs the body once per element, binding the loop variable in a
// fresh child scope each iteration. Assignments to names bound outside
// the loop update the outer binding.
func (st *state) foreach(n *Node) (any, error) {
	spec := n.block
	src, err := spec.source.exec(st)
	if err != nil {
		return nil, err
	}
	err = iterate(src, func(item any) (bool, error) {
		if spec.varType != nil {
			cast, err := spec.varType.Cast(item)
			if err != nil {
				return false, &TypeError{Op: "foreach", Left: describe(item), Right: spec.varType.Name, Span: n.Span, Err: fmt.Errorf("%w: %w", ErrTypeMismatch, err)}
			}
			item = cast
		}
		child := st.childScope()
		if err := child.Define(spec.varName, item); err != nil {
			return false, err
		}
		_, err := spec.bodies[0].exec(st.with(st.ctx, child))
		return err == nil, err
	})
	return nil, wrapIteration(n, err)
}

func (st *state) forBlock(n *Node) (any, error) {
	spec := n.block
	inner := st.with(st.ctx, st.childScope())
	if spec.init != nil {
		if _, err := spec.init.exec(inner); err != nil {
			return nil, err
		}
	}
	for {
		if len(spec.conds) > 0 {
			c, err := spec.conds[0].exec(inner)
			if err != nil {
				return nil, err
			}
			if !IsTruthy(c) {
				return nil, nil
			}
		}
		if _, err := spec.bodies[0].exec(inner); err != nil {
			return nil, err
		}
		if spec.step != nil {
			if _, err := spec.step.exec(inner); err != nil {
				return nil, err
			}
		}
	}
}

// withBlock assigns properties of one object and yields the object.
// Right-hand sides resolve against the object first.
func (st *state) withBlock(n *Node) (any, error) {
	obj, err := n.sub.exec(st)
	if err != nil {
		return nil, err
	}
	hv := host.Of(obj)
	target, ok := hv.(host.Settable)
	if !ok {
		return nil, &ResolutionError{Name: describe(obj), Expr: n.Text, Span: n.Span, Err: ErrNotAssignable}
	}
	inner := st.with(obj, st.sc)
	for _, a := range n.with {
		v, err := a.rhs.exec(inner)
		if err != nil {
			return nil, err
		}
		if a.op != OpNone {
			cur, err := hv.Member(a.name)
			if err != nil {
				return nil, &ResolutionError{Name: a.name, Expr: n.Text, Span: a.span, Err: ErrUnresolvableProperty, Cause: err}
			}
			if v, err = binary(a.op, cur, v); err != nil {
				return nil, &TypeError{Op: a.op.String() + "=", Left: describe(cur), Right: describe(v), Span: a.span, Err: err}
			}
		}
		if err := target.SetMember(a.name, v); err != nil {
			return nil, &ResolutionError{Name: a.name, Expr: n.Text, Span: a.span, Err: ErrNotAssignable, Cause: err}
		}
	}
	return obj, nil
}

func (st *state) returnValue(n *Node) (any, error) {
	var v any
	if n.sub != nil {
		var err error
		if v, err = n.sub.exec(st); err != nil {
			return nil, err
		}
	}
	return nil, &returnSignal{value: v}
}

func (st *state) assert(n *Node) (any, error) {
	v, err := n.sub.exec(st)
	if err != nil {
		return nil, err
	}
	if !IsTruthy(v) {
		return nil, fmt.Errorf("%w: %s at offset %d", ErrAssertion, n.sub.Source, n.Span.Start)
	}
	return v, nil
}

func (st *state) intercept(n *Node) (any, error) {
	if err := n.icept.Before(n.inner, st.ctx, st.sc); err != nil {
		return nil, &InvocationError{Name: "@" + n.Name, Expr: n.Text, Span: n.Span, Err: err}
	}
	v, err := st.value(n.inner)
	if err != nil {
		return nil, err
	}
	if err := n.icept.After(n.inner, v, st.ctx, st.sc); err != nil {
		return nil, &InvocationError{Name: "@" + n.Name, Expr: n.Text, Span: n.Span, Err: err}
	}
	return v, nil
}
