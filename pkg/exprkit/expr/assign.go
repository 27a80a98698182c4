package expr

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
)

// assign evaluates `x = v`, `a.b op= v`, `xs[i] = v` and typed
// declarations. The result is the stored value.
func (st *state) assign(n *Node) (any, error) {
	if n.Flags.Has(FlagDeclare) {
		return st.declare(n)
	}
	rhs, err := n.sub.exec(st)
	if err != nil {
		return nil, err
	}
	_, v, err := st.store(n, n.Op, rhs)
	return v, err
}

func (st *state) declare(n *Node) (any, error) {
	var v any
	if n.sub != nil {
		var err error
		if v, err = n.sub.exec(st); err != nil {
			return nil, err
		}
	}
	if n.typ != nil && v != nil {
		cast, err := n.typ.Cast(v)
		if err != nil {
			return nil, &TypeError{Op: n.typ.Short() + " " + n.Name, Left: describe(v), Span: n.Span, Err: fmt.Errorf("%w: %w", ErrTypeMismatch, err)}
		}
		v = cast
	}
	if st.sc == nil {
		return nil, &ResolutionError{Name: n.Name, Expr: n.Text, Span: n.Span, Err: ErrNoScope}
	}
	if err := st.sc.Define(n.Name, v); err != nil {
		return nil, &ResolutionError{Name: n.Name, Expr: n.Text, Span: n.Span, Err: ErrNotAssignable, Cause: err}
	}
	return v, nil
}

// incDec evaluates `x++`, `--a.b` and friends. Prefix forms yield the new
// value, postfix forms the old one.
func (st *state) incDec(n *Node) (any, error) {
	old, v, err := st.store(n, n.Op, int64(1))
	if err != nil {
		return nil, err
	}
	if n.Flags.Has(FlagPrefix) {
		return v, nil
	}
	return old, nil
}

// store writes through the node's assignment target. A compound op
// combines the current value with operand first. It returns the previous and the stored value.
func (st *state) store(n *Node, op Op, operand any) (any, any, error) {
	segs := n.target.segs
	last := segs[len(segs)-1]

	if len(segs) == 1 {
		var old any
		if op != OpNone {
			cur, err := st.resolveSegs(n, segs, nil, false, nil)
			if err != nil {
				return nil, nil, err
			}
			old = cur
		}
		v, err := combine(n, op, old, operand)
		if err != nil {
			return nil, nil, err
		}
		return old, v, st.writeName(n, last, v)
	}

	target, err := st.resolveSegs(n, segs[:len(segs)-1], nil, false, nil)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return nil, nil, &ResolutionError{Name: last.name, Expr: n.Text, Span: last.span, Err: ErrUnresolvableProperty, Cause: host.ErrNilValue}
	}
	hv := host.Of(target)
	settable, ok := hv.(host.Settable)
	if !ok {
		return nil, nil, &ResolutionError{Name: describe(target), Expr: n.Text, Span: last.span, Err: ErrNotAssignable}
	}

	if last.kind == segIndex {
		key, err := last.index.exec(st)
		if err != nil {
			return nil, nil, err
		}
		var old any
		if op != OpNone {
			if old, err = hv.Index(key); err != nil {
				return nil, nil, &IndexError{Key: key, Expr: n.Text, Span: last.span, Err: fmt.Errorf("%w: %w", ErrIndex, err)}
			}
			old = host.Normalize(old)
		}
		v, err := combine(n, op, old, operand)
		if err != nil {
			return nil, nil, err
		}
		if err := settable.SetIndex(key, v); err != nil {
			if errors.Is(err, host.ErrNotSettable) {
				return nil, nil, &ResolutionError{Name: host.Format(key), Expr: n.Text, Span: last.span, Err: ErrNotAssignable, Cause: err}
			}
			return nil, nil, &IndexError{Key: key, Expr: n.Text, Span: last.span, Err: fmt.Errorf("%w: %w", ErrIndex, err)}
		}
		return old, v, nil
	}

	var old any
	if op != OpNone {
		if old, err = hv.Member(last.name); err != nil {
			return nil, nil, &ResolutionError{Name: last.name, Expr: n.Text, Span: last.span, Err: ErrUnresolvableProperty, Cause: err}
		}
		old = host.Normalize(old)
	}
	v, err := combine(n, op, old, operand)
	if err != nil {
		return nil, nil, err
	}
	if err := settable.SetMember(last.name, v); err != nil {
		return nil, nil, &ResolutionError{Name: last.name, Expr: n.Text, Span: last.span, Err: ErrNotAssignable, Cause: err}
	}
	return old, v, nil
}

func combine(n *Node, op Op, old, operand any) (any, error) {
	if op == OpNone {
		return operand, nil
	}
	v, err := binary(op, old, operand)
	if err != nil {
		return nil, &TypeError{Op: op.String() + "=", Left: describe(old), Right: describe(operand), Span: n.Span, Err: err}
	}
	return v, nil
}

// writeName binds a bare name. An existing variable wins, then a settable
// member of the context object, then a new variable in the innermost
// scope.
func (st *state) writeName(n *Node, seg segment, v any) error {
	name := seg.name
	if st.inScope(name) {
		return st.setVar(n, seg, v)
	}
	if isReservedName(name) {
		return &ResolutionError{Name: name, Expr: n.Text, Span: seg.span, Err: ErrNotAssignable}
	}
	if st.ctx != nil {
		hv := host.Of(st.ctx)
		if _, err := hv.Member(name); err == nil {
			if s, ok := hv.(host.Settable); ok {
				if err := s.SetMember(name, v); err != nil {
					return &ResolutionError{Name: name, Expr: n.Text, Span: seg.span, Err: ErrNotAssignable, Cause: err}
				}
				return nil
			}
		}
	}
	if st.sc == nil {
		return &ResolutionError{Name: name, Expr: n.Text, Span: seg.span, Err: ErrNoScope}
	}
	return st.setVar(n, seg, v)
}

func (st *state) setVar(n *Node, seg segment, v any) error {
	if err := st.sc.Set(seg.name, v); err != nil {
		return &ResolutionError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: ErrNotAssignable, Cause: err}
	}
	return nil
}

// construct evaluates `new T(args)`.
func (st *state) construct(n *Node) (any, error) {
	args, err := st.args(n.args)
	if err != nil {
		return nil, err
	}
	f, converted, err := n.typ.SelectConstructor(args)
	if err != nil {
		return nil, &ResolutionError{Name: "new " + n.typ.Name, Expr: n.Text, Span: n.Span, Err: ErrUnresolvableProperty, Cause: err}
	}
	v, err := f.Call(nil, converted)
	if err != nil {
		return nil, &InvocationError{Name: "new " + n.typ.Name, Expr: n.Text, Span: n.Span, Err: err}
	}
	return host.Normalize(v), nil
}
