package expr

import "errors"

// operand is a value on the reducer's operand stack. Results of ordering
// comparisons remember their right operand so a chained comparison such as
// `1 < x < 5` can be regrouped as `1 < x && x < 5`.
type operand struct {
	v   any
	cmp bool
	mid any
}

// pending is a deferred binary operator.
type pending struct {
	op   Op
	node *Node
}

// reducer evaluates a unit's flat node sequence with an operand stack and
// an operator stack, without recursing on operator chains.
type reducer struct {
	u     *Unit
	st    *state
	pos   int
	vals  []operand
	ops   []pending
	nodes []*Node
}

// exec runs every statement and returns the value of the last one.
func (u *Unit) exec(st *state) (any, error) {
	r := &reducer{u: u, st: st, nodes: u.nodes}
	var result any
	for r.pos < len(r.nodes) {
		n := r.nodes[r.pos]
		switch {
		case n.Kind == KindLineMarker:
			if d := st.opts.debugger; d != nil {
				d.OnLine(Frame{SourceName: u.SourceName, Line: n.Line, Context: st.ctx, Scope: st.sc})
			}
			r.pos++
			continue
		case n.Kind == KindOperator && n.Op == OpEOS:
			r.pos++
			continue
		}
		v, err := r.expression(false)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

// expression evaluates from the cursor to the end of the statement, or to
// an unmatched ':' when stopAtElse is set. The terminator is not consumed.
func (r *reducer) expression(stopAtElse bool) (any, error) {
	base := len(r.vals)
	baseOps := len(r.ops)
	for r.pos < len(r.nodes) {
		n := r.nodes[r.pos]
		if n.IsOperand() {
			v, err := r.st.value(n)
			if err != nil {
				return nil, err
			}
			r.vals = append(r.vals, operand{v: v})
			r.pos++
			continue
		}
		if n.Kind == KindLineMarker {
			r.pos++
			continue
		}

		switch n.Op {
		case OpEOS:
			return r.finish(base, baseOps)
		case OpTernaryElse:
			if stopAtElse {
				return r.finish(base, baseOps)
			}
			return nil, &TypeError{Op: ":", Left: "missing '?'", Span: n.Span, Err: ErrSyntax}
		case OpAnd:
			if err := r.reduceWhile(baseOps, func(top Op) bool { return top.Precedence() >= OpAnd.Precedence() }); err != nil {
				return nil, err
			}
			if !IsTruthy(r.top().v) {
				r.vals[len(r.vals)-1] = operand{v: false}
				r.skip(OpOr, OpTernary, OpTernaryElse)
				continue
			}
		case OpOr:
			if err := r.reduceWhile(baseOps, func(top Op) bool { return top.Precedence() >= OpOr.Precedence() }); err != nil {
				return nil, err
			}
			if IsTruthy(r.top().v) {
				r.vals[len(r.vals)-1] = operand{v: true}
				r.skip(OpTernary, OpTernaryElse)
				continue
			}
		case OpTernary:
			if err := r.reduceWhile(baseOps, func(Op) bool { return true }); err != nil {
				return nil, err
			}
			cond := r.vals[len(r.vals)-1]
			r.vals = r.vals[:len(r.vals)-1]
			r.pos++
			v, err := r.ternary(IsTruthy(cond.v), stopAtElse)
			if err != nil {
				return nil, err
			}
			r.vals = append(r.vals, operand{v: v})
			continue
		default:
			op := n.Op
			if err := r.reduceWhile(baseOps, func(top Op) bool {
				tp, p := top.Precedence(), op.Precedence()
				return tp > p || (tp == p && !op.rightAssoc())
			}); err != nil {
				return nil, err
			}
		}
		r.ops = append(r.ops, pending{op: n.Op, node: n})
		r.pos++
	}
	return r.finish(base, baseOps)
}

// ternary evaluates the chosen branch with fresh stacks and skips the other.
func (r *reducer) ternary(cond, stopAtElse bool) (any, error) {
	if cond {
		v, err := r.nested(true)
		if err != nil {
			return nil, err
		}
		r.pos++ // ':'
		r.skipBranch()
		return v, nil
	}
	r.skipToElse()
	r.pos++ // ':'
	return r.nested(stopAtElse)
}

// nested evaluates a sub-expression on empty stacks.
func (r *reducer) nested(stopAtElse bool) (any, error) {
	vals, ops := r.vals, r.ops
	r.vals, r.ops = nil, nil
	v, err := r.expression(stopAtElse)
	r.vals, r.ops = vals, ops
	return v, err
}

func (r *reducer) top() operand {
	if len(r.vals) == 0 {
		return operand{}
	}
	return r.vals[len(r.vals)-1]
}

func (r *reducer) finish(base, baseOps int) (any, error) {
	if err := r.reduceWhile(baseOps, func(Op) bool { return true }); err != nil {
		return nil, err
	}
	if len(r.vals) == base {
		return nil, nil
	}
	v := r.vals[len(r.vals)-1].v
	r.vals = r.vals[:base]
	return v, nil
}

// reduceWhile applies deferred operators above baseOps while cond holds
// for the operator on top of the stack.
func (r *reducer) reduceWhile(baseOps int, cond func(top Op) bool) error {
	for len(r.ops) > baseOps && cond(r.ops[len(r.ops)-1].op) {
		p := r.ops[len(r.ops)-1]
		r.ops = r.ops[:len(r.ops)-1]
		if len(r.vals) < 2 {
			return &TypeError{Op: p.op.String(), Left: "missing operand", Span: p.node.Span, Err: ErrSyntax}
		}
		right := r.vals[len(r.vals)-1]
		left := r.vals[len(r.vals)-2]
		r.vals = r.vals[:len(r.vals)-2]
		res, err := r.apply(p, left, right)
		if err != nil {
			return err
		}
		r.vals = append(r.vals, res)
	}
	return nil
}

// apply reduces one binary operation. A failed comparison whose left
// operand is itself a comparison result is retried once as
// `left && (mid op right)`; if that fails too the original error stands.
func (r *reducer) apply(p pending, left, right operand) (operand, error) {
	var (
		v   any
		err error
	)
	if p.op == OpCustom {
		v = p.node.custom(left.v, right.v)
	} else {
		v, err = binary(p.op, left.v, right.v)
	}
	if err == nil {
		return operand{v: v, cmp: p.op.isComparison(), mid: right.v}, nil
	}

	if p.op.isComparison() && left.cmp && errors.Is(err, ErrTypeMismatch) {
		if again, retryErr := binary(p.op, left.mid, right.v); retryErr == nil {
			return operand{v: IsTruthy(left.v) && IsTruthy(again), cmp: true, mid: right.v}, nil
		}
	}
	return operand{}, &TypeError{
		Op:    p.node.Text,
		Left:  describe(left.v),
		Right: describe(right.v),
		Span:  p.node.Span,
		Err:   err,
	}
}

// skip advances the cursor, without evaluating anything, to the first
// operator in stops at the current nesting level or to the end of the
// statement. Nested ternaries inside the skipped range are passed over
// whole.
func (r *reducer) skip(stops ...Op) {
	depth := 0
	for ; r.pos < len(r.nodes); r.pos++ {
		n := r.nodes[r.pos]
		if n.Kind != KindOperator {
			continue
		}
		switch {
		case n.Op == OpEOS:
			return
		case n.Op == OpTernary && depth > 0:
			depth++
			continue
		case n.Op == OpTernaryElse && depth > 0:
			depth--
			continue
		}
		for _, s := range stops {
			if n.Op == s {
				return
			}
		}
		if n.Op == OpTernary {
			depth++
		}
	}
}

// skipToElse moves to the ':' matching the '?' just consumed.
func (r *reducer) skipToElse() {
	depth := 0
	for ; r.pos < len(r.nodes); r.pos++ {
		n := r.nodes[r.pos]
		if n.Kind != KindOperator {
			continue
		}
		switch n.Op {
		case OpEOS:
			return
		case OpTernary:
			depth++
		case OpTernaryElse:
			if depth == 0 {
				return
			}
			depth--
		}
	}
}

// skipBranch passes over an else branch: up to the end of the statement or
// an unmatched ':' belonging to an enclosing ternary.
func (r *reducer) skipBranch() {
	r.skipToElse()
}
