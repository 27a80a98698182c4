package expr

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
)

// plan records the links a safe resolution took so they can be promoted
// into the node's accessor slot.
type plan struct {
	root  rootLink
	start int
	links []link

	// dynamic pins the node to the safe path.
	dynamic bool
	// partial marks a resolution that stopped early on a null-safe segment
	// and therefore covers only part of the path.
	partial bool
}

func (p *plan) add(l link) {
	if p != nil {
		p.links = append(p.links, l)
	}
}

func (p *plan) setRoot(r rootLink, start int) {
	if p != nil {
		p.root, p.start, p.links = r, start, nil
	}
}

func (p *plan) markDynamic() {
	if p != nil {
		p.dynamic = true
	}
}

// resolveSegs resolves segs along the safe path. For identifier nodes the
// first segment names the root; when hasBase is set every segment applies
// to base instead.
func (st *state) resolveSegs(n *Node, segs []segment, base any, hasBase bool, rec *plan) (any, error) {
	if hasBase {
		return st.walk(n, segs, base, 0, false, rec)
	}
	cur, next, err := st.resolveRoot(n, segs, rec)
	if err != nil {
		return nil, err
	}
	return st.walk(n, segs, cur, next, true, rec)
}

// resolveRoot locates the leading name of a path. Names resolve, in order,
// against the variable scope, the literal and import registry, members of
// the context object, and finally qualified static type names. It returns
// the value and the index of the first unconsumed segment.
func (st *state) resolveRoot(n *Node, segs []segment, rec *plan) (any, int, error) {
	seg := segs[0]
	if seg.kind == segCall {
		v, err := st.rootCall(n, seg, rec)
		return v, 1, err
	}
	name := seg.name

	if st.inScope(name) {
		v, err := st.sc.Get(name)
		if err != nil {
			return nil, 0, &ResolutionError{Name: name, Expr: n.Text, Span: seg.span, Err: ErrUnresolvableIdentifier, Cause: err}
		}
		rec.setRoot(scopeRoot{name: name}, 1)
		return host.Normalize(v), 1, nil
	}

	if name == thisName {
		rec.setRoot(thisRoot{}, 1)
		return st.ctx, 1, nil
	}
	if v, ok := literalValue(name); ok {
		rec.setRoot(constRoot{name: name, v: v}, 1)
		return v, 1, nil
	}
	if v, ok := st.env().imports[name]; ok {
		rec.setRoot(constRoot{name: name, v: v}, 1)
		return v, 1, nil
	}
	if t, ok := st.env().types.Lookup(name); ok {
		rec.setRoot(constRoot{name: name, v: t}, 1)
		return t, 1, nil
	}

	if v, found, err := st.ctxMember(n, seg, rec); err != nil || found {
		return v, 1, err
	}

	if t, k, ok := st.staticPrefix(segs); ok {
		rec.setRoot(staticRoot{name: name, typ: t}, k)
		return t, k, nil
	}
	return nil, 0, &ResolutionError{Name: name, Expr: n.Text, Span: seg.span, Err: ErrUnresolvableIdentifier}
}

// env returns the compile environment of the evaluation.
func (st *state) env() *environment {
	return st.opts.env
}

func (st *state) inScope(name string) bool {
	return st.sc != nil && st.sc.IsResolvable(name)
}

// ctxMember reads a member of the context object. found is false when the
// context has no such member.
func (st *state) ctxMember(n *Node, seg segment, rec *plan) (any, bool, error) {
	if st.ctx == nil {
		return nil, false, nil
	}
	if g, ok := host.Bind(st.ctx, seg.name); ok {
		v, ok, err := g.Get(st.ctx)
		if err != nil {
			return nil, false, &InvocationError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: err}
		}
		if ok {
			rec.setRoot(ctxGetterRoot{g: g}, 1)
			return host.Normalize(v), true, nil
		}
	}
	v, err := host.Of(st.ctx).Member(seg.name)
	switch {
	case errors.Is(err, host.ErrNoMember):
		return nil, false, nil
	case err != nil:
		return nil, false, &InvocationError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: err}
	}
	rec.markDynamic()
	return host.Normalize(v), true, nil
}

// staticPrefix finds the longest leading run of name segments that spells
// a registered qualified type, such as `lang.Math` in `lang.Math.max(1, 2)`.
func (st *state) staticPrefix(segs []segment) (*host.Type, int, bool) {
	for k := len(segs); k >= 2; k-- {
		name, ok := (&path{segs: segs}).qualifiedPrefix(k)
		if !ok {
			continue
		}
		if t, ok := st.env().types.Qualified(name); ok {
			return t, k, true
		}
	}
	return nil, 0, false
}

// rootCall invokes a function named by the first path segment: a callable
// scope variable, an imported function, or a method of the context object.
func (st *state) rootCall(n *Node, seg segment, rec *plan) (any, error) {
	args, err := st.args(seg.args)
	if err != nil {
		return nil, err
	}

	if st.inScope(seg.name) {
		fn, err := st.sc.Get(seg.name)
		if err != nil {
			return nil, &ResolutionError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: ErrUnresolvableIdentifier, Cause: err}
		}
		fns, err := callable(seg.name, fn)
		if err != nil {
			return nil, &ResolutionError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: ErrUnresolvableIdentifier, Cause: err}
		}
		rec.markDynamic()
		return st.invoke(n, seg, fns, nil, args)
	}

	if imp, ok := st.env().imports[seg.name]; ok {
		fns, err := callable(seg.name, imp)
		if err != nil {
			return nil, &ResolutionError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: ErrUnresolvableIdentifier, Cause: err}
		}
		rec.setRoot(importCallRoot{seg: seg, fns: fns}, 1)
		return st.invoke(n, seg, fns, nil, args)
	}

	if st.ctx != nil {
		hv := host.Of(st.ctx)
		if fns := hv.Methods(seg.name); len(fns) > 0 {
			if host.IsNative(st.ctx) {
				rec.setRoot(ctxMethodRoot{seg: seg, typ: reflect.TypeOf(st.ctx), fns: fns}, 1)
			} else {
				rec.markDynamic()
			}
			return st.invoke(n, seg, fns, st.ctx, args)
		}
	}
	return nil, &ResolutionError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: ErrUnresolvableIdentifier, Cause: host.ErrNoMethod}
}

// callable turns a scope or import binding into an overload set.
func callable(name string, v any) ([]*host.Func, error) {
	switch fn := v.(type) {
	case *host.Func:
		return []*host.Func{fn}, nil
	case []*host.Func:
		return fn, nil
	case nil:
		return nil, fmt.Errorf("%w: %s is null", host.ErrNoMethod, name)
	}
	if reflect.TypeOf(v).Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s is %T", host.ErrNoMethod, name, v)
	}
	f, err := host.FuncOf(name, v)
	if err != nil {
		return nil, err
	}
	return []*host.Func{f}, nil
}

// invoke selects an overload for args and calls it.
func (st *state) invoke(n *Node, seg segment, fns []*host.Func, recv any, args []any) (any, error) {
	f, converted, err := host.Select(fns, args)
	if err != nil {
		return nil, &ResolutionError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: ErrUnresolvableProperty, Cause: err}
	}
	return st.call(n, seg, f, recv, converted)
}

func (st *state) call(n *Node, seg segment, f *host.Func, recv any, converted []any) (any, error) {
	if _, static := recv.(*host.Type); static {
		recv = nil
	}
	v, err := f.Call(recv, converted)
	if err != nil {
		return nil, &InvocationError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: err}
	}
	return host.Normalize(v), nil
}

// walk applies segs[from:] to cur. When a step fails on an identifier
// path, a qualified static type spelled by the leading segments is tried
// before the failure is reported.
func (st *state) walk(n *Node, segs []segment, cur any, from int, fallback bool, rec *plan) (any, error) {
	for i := from; i < len(segs); i++ {
		seg := segs[i]
		if cur == nil {
			if seg.nullSafe {
				if rec != nil {
					rec.partial = true
				}
				return nil, nil
			}
			err := error(&ResolutionError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: ErrUnresolvableProperty, Cause: host.ErrNilValue})
			return st.fallback(n, segs, err, fallback, rec)
		}
		next, err := st.step(n, seg, cur, rec)
		if err != nil {
			return st.fallback(n, segs, err, fallback, rec)
		}
		cur = next
	}
	return cur, nil
}

// fallback retries a failed object-graph path as a static type path. The
// original error is reported when that fails too.
func (st *state) fallback(n *Node, segs []segment, cause error, enabled bool, rec *plan) (any, error) {
	if !enabled || !isPropertyFailure(cause) {
		return nil, cause
	}
	t, k, ok := st.staticPrefix(segs)
	if !ok {
		return nil, cause
	}
	rec.markDynamic()
	v, err := st.walk(n, segs, t, k, false, rec)
	if err != nil {
		return nil, cause
	}
	return v, nil
}

func isPropertyFailure(err error) bool {
	return errors.Is(err, ErrUnresolvableProperty)
}

// step applies one segment to a non-nil receiver.
func (st *state) step(n *Node, seg segment, cur any, rec *plan) (any, error) {
	if !host.IsNative(cur) {
		if _, static := cur.(*host.Type); !static {
			rec.markDynamic()
		}
	}
	switch seg.kind {
	case segName:
		return st.member(n, seg, cur, rec)
	case segCall:
		return st.method(n, seg, cur, rec)
	default:
		return st.index(n, seg, cur, rec)
	}
}

func (st *state) member(n *Node, seg segment, cur any, rec *plan) (any, error) {
	if g, ok := host.Bind(cur, seg.name); ok {
		v, ok, err := g.Get(cur)
		if err != nil {
			return nil, &InvocationError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: err}
		}
		if ok {
			rec.add(getterLink{seg: seg, g: g})
			return host.Normalize(v), nil
		}
	}
	v, err := host.Of(cur).Member(seg.name)
	switch {
	case errors.Is(err, host.ErrNoMember):
		return nil, &ResolutionError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: ErrUnresolvableProperty, Cause: err}
	case err != nil:
		return nil, &InvocationError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: err}
	}
	rec.add(newMemberLink(seg, cur))
	return host.Normalize(v), nil
}

func (st *state) method(n *Node, seg segment, cur any, rec *plan) (any, error) {
	fns := host.Of(cur).Methods(seg.name)
	if len(fns) == 0 {
		return nil, &ResolutionError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: ErrUnresolvableProperty, Cause: host.ErrNoMethod}
	}
	args, err := st.args(seg.args)
	if err != nil {
		return nil, err
	}
	f, converted, err := host.Select(fns, args)
	if err != nil {
		return nil, &ResolutionError{Name: seg.name, Expr: n.Text, Span: seg.span, Err: ErrUnresolvableProperty, Cause: err}
	}
	rec.add(newCallLink(seg, cur, fns))
	return st.call(n, seg, f, cur, converted)
}

func (st *state) index(n *Node, seg segment, cur any, rec *plan) (any, error) {
	key, err := seg.index.exec(st)
	if err != nil {
		return nil, err
	}
	v, err := host.Of(cur).Index(key)
	if err != nil {
		return nil, &IndexError{Key: key, Expr: n.Text, Span: seg.span, Err: fmt.Errorf("%w: %w", ErrIndex, err)}
	}
	rec.add(newIndexLink(seg, cur))
	return host.Normalize(v), nil
}
