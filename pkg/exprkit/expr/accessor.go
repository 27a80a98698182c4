package expr

import (
	"errors"
	"reflect"

	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
)

// slot is the published state of a node's accessor cache. A nil slot is
// unresolved; a slot with an accessor is resolved; a dynamic slot keeps
// the node on the safe path for good.
type slot struct {
	acc     *chain
	dynamic bool
}

// rootLink produces the first value of a cached identifier path. ok=false
// is a miss: the guard no longer holds and nothing was evaluated.
type rootLink interface {
	get(st *state, n *Node) (v any, ok bool, err error)
}

// link applies one cached path segment to a receiver. ok=false is a miss
// and must be reported before any side effect.
type link interface {
	get(st *state, n *Node, cur any) (v any, ok bool, err error)
}

const (
	hit      = -1
	rootMiss = -2
)

// chain is a promoted accessor: a root plus one link per remaining segment.
type chain struct {
	root  rootLink // nil for paths continuing off a computed value
	start int
	links []link
}

// run executes the chain. On a miss it returns the index of the failed
// link and the receiver that link was given.
func (c *chain) run(st *state, n *Node, base any) (any, int, error) {
	cur := base
	if c.root != nil {
		v, ok, err := c.root.get(st, n)
		if err != nil {
			return nil, hit, err
		}
		if !ok {
			return nil, rootMiss, nil
		}
		cur = v
	}
	for j, l := range c.links {
		if cur == nil {
			return nil, j, nil
		}
		v, ok, err := l.get(st, n, cur)
		if err != nil {
			return nil, hit, err
		}
		if !ok {
			return cur, j, nil
		}
		cur = v
	}
	return cur, hit, nil
}

// resolveNode evaluates the path of n. When the accessor cache is enabled
// it runs the promoted chain, demoting it on a miss and resuming the safe
// path from the failed segment, so nothing before the miss runs twice.
func (st *state) resolveNode(n *Node, base any, hasBase bool) (any, error) {
	segs := n.path.segs
	if st.opts.safe {
		return st.resolveSegs(n, segs, base, hasBase, nil)
	}

	s := n.slot.Load()
	switch {
	case s == nil:
	case s.dynamic:
		return st.resolveSegs(n, segs, base, hasBase, nil)
	default:
		v, miss, err := s.acc.run(st, n, base)
		if err != nil || miss == hit {
			return v, err
		}
		st.demote(n, s)
		if miss != rootMiss {
			rec := &plan{
				root:  s.acc.root,
				start: s.acc.start,
				links: append([]link(nil), s.acc.links[:miss]...),
			}
			out, err := st.walk(n, segs, v, s.acc.start+miss, !hasBase, rec)
			if err != nil {
				return nil, err
			}
			st.promote(n, rec)
			return out, nil
		}
	}

	rec := &plan{}
	v, err := st.resolveSegs(n, segs, base, hasBase, rec)
	if err != nil {
		return nil, err
	}
	st.promote(n, rec)
	return v, nil
}

// promote publishes a recorded plan into an unresolved slot.
func (st *state) promote(n *Node, rec *plan) {
	switch {
	case rec.partial:
	case rec.dynamic:
		n.slot.CompareAndSwap(nil, &slot{dynamic: true})
	default:
		acc := &chain{root: rec.root, start: rec.start, links: rec.links}
		if n.slot.CompareAndSwap(nil, &slot{acc: acc}) && st.opts.observer != nil {
			st.opts.observer.OnPromote(n)
		}
	}
}

// demote returns a resolved slot to unresolved.
func (st *state) demote(n *Node, s *slot) {
	if n.slot.CompareAndSwap(s, nil) && st.opts.observer != nil {
		st.opts.observer.OnDemote(n)
	}
}

// Root links.

type scopeRoot struct{ name string }

func (r scopeRoot) get(st *state, _ *Node) (any, bool, error) {
	if !st.inScope(r.name) {
		return nil, false, nil
	}
	v, err := st.sc.Get(r.name)
	if err != nil {
		return nil, false, nil
	}
	return host.Normalize(v), true, nil
}

type thisRoot struct{}

func (thisRoot) get(st *state, _ *Node) (any, bool, error) {
	return st.ctx, true, nil
}

// constRoot yields a literal, import or type unless a variable now
// shadows the name.
type constRoot struct {
	name string
	v    any
}

func (r constRoot) get(st *state, _ *Node) (any, bool, error) {
	if st.inScope(r.name) {
		return nil, false, nil
	}
	return r.v, true, nil
}

type ctxGetterRoot struct{ g *host.Getter }

func (r ctxGetterRoot) get(st *state, n *Node) (any, bool, error) {
	if st.inScope(r.g.Name()) {
		return nil, false, nil
	}
	v, ok, err := r.g.Get(st.ctx)
	if err != nil {
		return nil, false, &InvocationError{Name: r.g.Name(), Expr: n.Text, Span: n.Span, Err: err}
	}
	return host.Normalize(v), ok, nil
}

// staticRoot yields a type reached through a qualified name, valid while
// neither the scope nor the context claims the leading name.
type staticRoot struct {
	name string
	typ  *host.Type
}

func (r staticRoot) get(st *state, _ *Node) (any, bool, error) {
	if st.inScope(r.name) {
		return nil, false, nil
	}
	if st.ctx != nil {
		if _, err := host.Of(st.ctx).Member(r.name); !errors.Is(err, host.ErrNoMember) {
			return nil, false, nil
		}
	}
	return r.typ, true, nil
}

// importCallRoot calls an imported function.
type importCallRoot struct {
	seg segment
	fns []*host.Func
}

func (r importCallRoot) get(st *state, n *Node) (any, bool, error) {
	if st.inScope(r.seg.name) {
		return nil, false, nil
	}
	args, err := st.args(r.seg.args)
	if err != nil {
		return nil, false, err
	}
	v, err := st.invoke(n, r.seg, r.fns, nil, args)
	return v, err == nil, err
}

// ctxMethodRoot calls a method of a context object of a fixed type.
type ctxMethodRoot struct {
	seg segment
	typ reflect.Type
	fns []*host.Func
}

func (r ctxMethodRoot) get(st *state, n *Node) (any, bool, error) {
	if reflect.TypeOf(st.ctx) != r.typ || st.inScope(r.seg.name) {
		return nil, false, nil
	}
	args, err := st.args(r.seg.args)
	if err != nil {
		return nil, false, err
	}
	v, err := st.invoke(n, r.seg, r.fns, st.ctx, args)
	return v, err == nil, err
}

// Segment links.

// getterLink reads a member through a receiver-bound getter.
type getterLink struct {
	seg segment
	g   *host.Getter
}

func (l getterLink) get(_ *state, n *Node, cur any) (any, bool, error) {
	v, ok, err := l.g.Get(cur)
	if err != nil {
		return nil, false, &InvocationError{Name: l.seg.name, Expr: n.Text, Span: l.seg.span, Err: err}
	}
	return host.Normalize(v), ok, nil
}

// guard matches receivers of the shape a link was recorded against.
// Static types match by identity, everything else by dynamic type.
type guard struct {
	typ  reflect.Type
	stat *host.Type
}

func guardFor(cur any) guard {
	if t, ok := cur.(*host.Type); ok {
		return guard{stat: t}
	}
	return guard{typ: reflect.TypeOf(cur)}
}

func (g guard) holds(cur any) bool {
	if g.stat != nil {
		return cur == any(g.stat)
	}
	return reflect.TypeOf(cur) == g.typ
}

// memberLink reads a member through the host adapter.
type memberLink struct {
	seg   segment
	guard guard
}

func newMemberLink(seg segment, cur any) link {
	return memberLink{seg: seg, guard: guardFor(cur)}
}

func (l memberLink) get(_ *state, n *Node, cur any) (any, bool, error) {
	if !l.guard.holds(cur) {
		return nil, false, nil
	}
	v, err := host.Of(cur).Member(l.seg.name)
	switch {
	case errors.Is(err, host.ErrNoMember):
		return nil, false, nil
	case err != nil:
		return nil, false, &InvocationError{Name: l.seg.name, Expr: n.Text, Span: l.seg.span, Err: err}
	}
	return host.Normalize(v), true, nil
}

// callLink invokes a method from an overload set captured for one
// receiver type. The receiver is checked before any argument is
// evaluated; arguments of a different shape re-select within the set.
type callLink struct {
	seg   segment
	guard guard
	fns   []*host.Func
}

func newCallLink(seg segment, cur any, fns []*host.Func) link {
	return callLink{seg: seg, guard: guardFor(cur), fns: fns}
}

func (l callLink) get(st *state, n *Node, cur any) (any, bool, error) {
	if !l.guard.holds(cur) {
		return nil, false, nil
	}
	args, err := st.args(l.seg.args)
	if err != nil {
		return nil, false, err
	}
	v, err := st.invoke(n, l.seg, l.fns, cur, args)
	return v, err == nil, err
}

// indexLink indexes receivers of one type.
type indexLink struct {
	seg   segment
	guard guard
}

func newIndexLink(seg segment, cur any) link {
	return indexLink{seg: seg, guard: guardFor(cur)}
}

func (l indexLink) get(st *state, n *Node, cur any) (any, bool, error) {
	if !l.guard.holds(cur) {
		return nil, false, nil
	}
	v, err := st.index(n, l.seg, cur, nil)
	return v, err == nil, err
}
