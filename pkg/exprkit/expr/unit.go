package expr

import (
	"errors"
	"fmt"
	"maps"
	"reflect"

	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
)

// Config controls one compilation.
type Config struct {
	// Strict rejects reads of, and untyped assignments to, names that are
	// not inputs, imports, type names, literals or earlier typed
	// declarations.
	Strict bool

	// SourceName labels diagnostics and debug frames.
	SourceName string

	// Debug emits line markers between top-level statements.
	Debug bool

	// Optimize enables the per-node accessor cache. When false every
	// evaluation takes the safe resolution path.
	Optimize bool

	// Types is the host type registry. Defaults to host.DefaultTypes().
	Types *host.Types

	// Imports binds names to types, static values or function overloads.
	Imports map[string]any

	// Interceptors are addressable in source as @name.
	Interceptors map[string]Interceptor

	// Inputs declares the names a strict compilation may read, with their
	// Go types when known.
	Inputs map[string]reflect.Type

	// Operators registers custom word operators at comparison precedence.
	Operators map[string]BinaryOp
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{Optimize: true}
}

// ParserContext holds the state of a single compilation: configuration,
// the import table built by import statements, typed declarations seen so
// far and collected diagnostics.
//
// A ParserContext is confined to one goroutine and one Compile call.
type ParserContext struct {
	cfg      Config
	types    *host.Types
	imports  map[string]any
	declared map[string]bool
	diags    []Diagnostic
	src      string

	// relaxed is non-zero while compiling code whose names resolve against
	// a per-element context, where strict checks cannot apply.
	relaxed int
}

// NewParserContext creates a context for one compilation.
func NewParserContext(cfg Config) *ParserContext {
	types := cfg.Types
	if types == nil {
		types = host.DefaultTypes()
	}
	imports := make(map[string]any, len(cfg.Imports))
	maps.Copy(imports, cfg.Imports)
	return &ParserContext{
		cfg:      cfg,
		types:    types,
		imports:  imports,
		declared: make(map[string]bool),
	}
}

// Diagnostics returns every diagnostic recorded so far.
func (p *ParserContext) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), p.diags...)
}

func (p *ParserContext) report(sev Severity, offset int, format string, args ...any) {
	line, col := position(p.src, offset)
	p.diags = append(p.diags, Diagnostic{
		Severity:   sev,
		Message:    fmt.Sprintf(format, args...),
		SourceName: p.cfg.SourceName,
		Offset:     offset,
		Line:       line,
		Column:     col,
		Excerpt:    excerpt(p.src, offset),
	})
}

func (p *ParserContext) hasFatal() bool {
	for _, d := range p.diags {
		if d.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// known reports whether a strict compilation may reference name.
func (p *ParserContext) known(name string) bool {
	if p.declared[name] || isReservedName(name) || name == elemName {
		return true
	}
	if _, ok := p.cfg.Inputs[name]; ok {
		return true
	}
	if _, ok := p.imports[name]; ok {
		return true
	}
	_, ok := p.types.Lookup(name)
	return ok
}

// environment is shared by a unit and all of its sub-units.
type environment struct {
	source     string
	sourceName string
	types      *host.Types
	imports    map[string]any
	optimize   bool
}

// Unit is a compiled expression: an ordered node sequence plus metadata.
//
// A Unit is safe for concurrent evaluation. Evaluations only mutate the
// accessor slots of its nodes, which publish atomically.
type Unit struct {
	// Source is the text this unit was compiled from.
	Source string

	// SourceName is the configured source label.
	SourceName string

	// LiteralOnly is set when the whole unit folded to a constant.
	LiteralOnly bool

	// KnownType is the static type of the result when it can be
	// determined at compile time, or nil.
	KnownType reflect.Type

	// Diagnostics holds warnings recorded during compilation. Only the
	// root unit carries them.
	Diagnostics []Diagnostic

	nodes []*Node
	env   *environment
	span  Span
}

// Nodes returns the unit's node sequence.
func (u *Unit) Nodes() []*Node {
	return append([]*Node(nil), u.nodes...)
}

// Optimized reports whether evaluations use the accessor cache.
func (u *Unit) Optimized() bool {
	return u.env.optimize
}

// literal returns the constant value of a LiteralOnly unit.
func (u *Unit) literal() any {
	if len(u.nodes) == 0 {
		return nil
	}
	return u.nodes[0].Value
}

// Compile parses source into a Unit. A nil pctx uses DefaultConfig.
//
// All diagnostics are collected before compilation is aborted; the returned
// *ParseError lists them. Warnings alone do not fail compilation and are
// kept on the unit.
func Compile(source string, pctx *ParserContext) (*Unit, error) {
	if pctx == nil {
		pctx = NewParserContext(DefaultConfig())
	}
	pctx.src = source

	env := &environment{
		source:     source,
		sourceName: pctx.cfg.SourceName,
		types:      pctx.types,
		imports:    pctx.imports,
		optimize:   pctx.cfg.Optimize,
	}
	u := pctx.compileRange(env, 0, len(source), 0)

	if pctx.hasFatal() {
		return nil, &ParseError{SourceName: pctx.cfg.SourceName, Diagnostics: pctx.Diagnostics()}
	}
	u.Diagnostics = pctx.Diagnostics()
	return u, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(source string, pctx *ParserContext) *Unit {
	u, err := Compile(source, pctx)
	if err != nil {
		panic(err)
	}
	return u
}

// compileRange compiles src[start:end] as a unit sharing env.
func (p *ParserContext) compileRange(env *environment, start, end, depth int) *Unit {
	l := p.newLexer(env, start, end, depth)
	var nodes []*Node
	failed := false
	for {
		n, err := l.nextNode()
		if err != nil {
			failed = true
			l.recover(err)
			nodes = append(nodes, &Node{Kind: KindOperator, Op: OpEOS, Span: Span{l.pos, l.pos}})
			continue
		}
		if n == nil {
			break
		}
		nodes = append(nodes, n)
	}

	u := &Unit{
		Source:     env.source[start:end],
		SourceName: env.sourceName,
		nodes:      nodes,
		env:        env,
		span:       Span{start, end},
	}
	if failed {
		return u
	}
	p.verify(u)
	p.warnNoEffect(u)
	p.fold(u)
	p.inferType(u)
	return u
}

// statements splits nodes at end-of-statement operators.
func statements(nodes []*Node) [][]*Node {
	var out [][]*Node
	from := 0
	for i, n := range nodes {
		if n.Kind == KindOperator && n.Op == OpEOS {
			out = append(out, nodes[from:i])
			from = i + 1
		}
	}
	return append(out, nodes[from:])
}

// verify checks operand/operator alternation and ternary balance.
func (p *ParserContext) verify(u *Unit) {
	for _, stmt := range statements(u.nodes) {
		expectOperand := true
		pending := 0
		var last *Node
		for _, n := range stmt {
			if n.Kind == KindLineMarker {
				continue
			}
			if n.IsOperand() {
				if !expectOperand {
					p.report(SeverityFatal, n.Span.Start, "missing operator before %q", n.Text)
				}
				expectOperand = false
				last = n
				continue
			}
			if expectOperand {
				p.report(SeverityFatal, n.Span.Start, "unexpected operator %q", n.Op)
			}
			switch n.Op {
			case OpTernary:
				pending++
			case OpTernaryElse:
				if pending == 0 {
					p.report(SeverityFatal, n.Span.Start, "':' without matching '?'")
				} else {
					pending--
				}
			}
			expectOperand = true
			last = n
		}
		if last != nil && last.Kind == KindOperator {
			p.report(SeverityFatal, last.Span.Start, "incomplete expression after %q", last.Op)
		}
		if pending > 0 {
			p.report(SeverityFatal, stmt[0].Span.Start, "'?' without matching ':'")
		}
	}
}

// foldable reports whether n is a plain constant.
func foldable(n *Node) bool {
	return n.Kind == KindLiteral && n.path == nil
}

func literalStatement(stmt []*Node) bool {
	operands := 0
	for _, n := range stmt {
		switch {
		case n.Kind == KindOperator:
		case foldable(n):
			operands++
		default:
			return false
		}
	}
	return operands > 0
}

// warnNoEffect flags constant statements whose value is discarded.
func (p *ParserContext) warnNoEffect(u *Unit) {
	stmts := statements(u.nodes)
	last := len(stmts) - 1
	for last >= 0 && len(stmts[last]) == 0 {
		last--
	}
	for i := 0; i < last; i++ {
		if literalStatement(stmts[i]) {
			p.report(SeverityWarning, stmts[i][0].Span.Start, "statement has no effect")
		}
	}
}

// fold reduces constant sub-sequences at compile time. A unit made only of
// literals and operators collapses to one literal node; otherwise runs of
// `literal op literal` bound tighter than both neighbours fold in place.
func (p *ParserContext) fold(u *Unit) {
	if len(u.nodes) == 0 {
		return
	}
	if literalStatement(u.nodes) {
		v, err := u.exec(newState(nil, nil, &evalOptions{safe: true, env: u.env}))
		if err == nil {
			first, last := u.nodes[0], u.nodes[len(u.nodes)-1]
			u.nodes = []*Node{p.literalNode(u.env, Span{first.Span.Start, last.Span.End}, v)}
			u.LiteralOnly = true
			return
		}
	}
	u.nodes = p.foldRuns(u.env, u.nodes)
}

func (p *ParserContext) foldRuns(env *environment, nodes []*Node) []*Node {
	for changed := true; changed; {
		changed = false
		for i := 0; i+2 < len(nodes); i++ {
			l, op, r := nodes[i], nodes[i+1], nodes[i+2]
			if !foldable(l) || !foldable(r) || op.Kind != KindOperator ||
				!op.Op.isArithmetic() || op.Op.isComparison() {
				continue
			}
			prec := op.Op.Precedence()
			if i > 0 && nodes[i-1].Kind == KindOperator && nodes[i-1].Op.Precedence() >= prec {
				continue
			}
			if i+3 < len(nodes) && nodes[i+3].Kind == KindOperator {
				next := nodes[i+3].Op.Precedence()
				if next > prec || (next == prec && op.Op.rightAssoc()) {
					continue
				}
			}
			v, err := binary(op.Op, l.Value, r.Value)
			if err != nil {
				if errors.Is(err, ErrDivisionByZero) {
					p.report(SeverityWarning, op.Span.Start, "division by zero")
				}
				continue
			}
			lit := p.literalNode(env, Span{l.Span.Start, r.Span.End}, v)
			nodes = append(nodes[:i], append([]*Node{lit}, nodes[i+3:]...)...)
			changed = true
		}
	}
	return nodes
}

func (p *ParserContext) literalNode(env *environment, sp Span, v any) *Node {
	n := &Node{Kind: KindLiteral, Span: sp, Text: env.source[sp.Start:sp.End], Value: v}
	if host.IsNumber(v) {
		n.Flags |= FlagNumeric
	}
	return n
}

// inferType records the static result type where it is evident.
func (p *ParserContext) inferType(u *Unit) {
	if len(u.nodes) != 1 {
		return
	}
	n := u.nodes[0]
	switch {
	case u.LiteralOnly && n.Value != nil:
		u.KnownType = reflect.TypeOf(n.Value)
	case n.Kind == KindCast && n.typ != nil:
		u.KnownType = n.typ.GoType
	case n.Kind == KindAssign && n.Flags.Has(FlagDeclare) && n.typ != nil:
		u.KnownType = n.typ.GoType
	case n.Kind == KindIdentifier && n.path.simple() && n.Flags&(FlagNegate|FlagMinus|FlagInvert) == 0:
		u.KnownType = p.cfg.Inputs[n.path.root()]
	}
}
