package expr

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
)

// lexError is a fatal scanning error at a source offset.
type lexError struct {
	offset int
	msg    string
}

func (e *lexError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.offset, e.msg)
}

// lexer produces one classified node per nextNode call from src[pos:end].
//
// Nested constructs (arguments, indexes, bodies, collection elements) are
// compiled as separate units over sub-ranges of the same source, so every
// span stays an absolute offset into the original text.
type lexer struct {
	src   string
	pos   int
	end   int
	depth int
	pctx  *ParserContext
	env   *environment

	// last is the previous significant node; it decides whether the
	// cursor sits in operand or operator position.
	last *Node

	// prefix holds unary flags waiting for their operand.
	prefix      Flags
	prefixStart int

	// queue holds synthetic nodes to emit before scanning further.
	queue []*Node

	ternary  int
	lastLine int
}

func (p *ParserContext) newLexer(env *environment, start, end, depth int) *lexer {
	return &lexer{
		src:   env.source,
		pos:   start,
		end:   end,
		depth: depth,
		pctx:  p,
		env:   env,
	}
}

func (l *lexer) errorf(offset int, format string, args ...any) error {
	return &lexError{offset: offset, msg: fmt.Sprintf(format, args...)}
}

// recover records err and skips to the next statement.
func (l *lexer) recover(err error) {
	offset := l.pos
	msg := err.Error()
	if le, ok := err.(*lexError); ok {
		offset, msg = le.offset, le.msg
	}
	l.pctx.report(SeverityFatal, offset, "%s", msg)

	from := min(max(l.pos, offset), l.end)
	l.pos = findStatementEnd(l.src, from, l.end, false)
	if l.pos < l.end {
		l.pos++
	}
	l.last = nil
	l.prefix = 0
	l.queue = nil
	l.ternary = 0
}

func (l *lexer) operandPosition() bool {
	return l.last == nil || l.last.Kind == KindOperator
}

func (l *lexer) atStatementStart() bool {
	return l.last == nil || (l.last.Kind == KindOperator && l.last.Op == OpEOS)
}

// nextNode returns the next node, or nil at the end of the range.
func (l *lexer) nextNode() (*Node, error) {
	if len(l.queue) > 0 {
		n := l.queue[0]
		l.queue = l.queue[1:]
		l.last = n
		return n, nil
	}
	if err := l.skipSpace(); err != nil {
		return nil, err
	}
	if l.pos >= l.end {
		return nil, l.danglingPrefix()
	}

	stmt := l.atStatementStart()
	if stmt && l.pctx.cfg.Debug && l.depth == 0 {
		if line, _ := position(l.src, l.pos); line != l.lastLine {
			l.lastLine = line
			return &Node{Kind: KindLineMarker, Line: line, Span: Span{l.pos, l.pos}}, nil
		}
	}

	n, err := l.scan()
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, l.danglingPrefix()
	}
	if n.IsOperand() {
		l.applyPrefix(n)
	} else if l.prefix != 0 {
		return nil, l.errorf(l.prefixStart, "expected an operand after prefix operator")
	}

	if n.Kind == KindOperator {
		switch n.Op {
		case OpTernary:
			l.ternary++
		case OpTernaryElse:
			l.ternary--
		case OpEOS:
			l.ternary = 0
		}
	}
	l.last = n

	block := n.Kind.isBlock() || (n.Kind == KindIntercept && n.inner.Kind.isBlock())
	if block && stmt {
		l.queue = append(l.queue, &Node{Kind: KindOperator, Op: OpEOS, Span: Span{n.Span.End, n.Span.End}})
	}
	return n, nil
}

func (l *lexer) danglingPrefix() error {
	if l.prefix != 0 {
		return l.errorf(l.prefixStart, "expected an operand after prefix operator")
	}
	return nil
}

func (l *lexer) togglePrefix(f Flags, start int) {
	if l.prefix == 0 {
		l.prefixStart = start
	}
	l.prefix ^= f
}

// applyPrefix attaches pending unary operators to operand n. Constants
// take the operator at compile time.
func (l *lexer) applyPrefix(n *Node) {
	if l.prefix == 0 {
		return
	}
	flags := l.prefix
	l.prefix = 0
	n.Span.Start = min(n.Span.Start, l.prefixStart)
	n.Text = l.src[n.Span.Start:n.Span.End]

	if foldable(n) {
		if v, err := unary(flags, n.Value); err == nil {
			n.Value = v
			return
		}
	}
	n.Flags |= flags
}

// operandNode scans exactly one operand, used after casts and
// interceptors. Pending outer prefixes are kept for the wrapping node.
func (l *lexer) operandNode(after string) (*Node, error) {
	saved, savedStart := l.prefix, l.prefixStart
	l.prefix = 0
	defer func() { l.prefix, l.prefixStart = saved, savedStart }()

	if err := l.skipSpace(); err != nil {
		return nil, err
	}
	start := l.pos
	n, err := l.scan()
	if err != nil {
		return nil, err
	}
	if n == nil || !n.IsOperand() {
		return nil, l.errorf(start, "expected an operand after %s", after)
	}
	l.applyPrefix(n)
	return n, nil
}

// scan classifies the token at the cursor.
func (l *lexer) scan() (*Node, error) {
	if err := l.skipSpace(); err != nil {
		return nil, err
	}
	if l.pos >= l.end {
		return nil, nil
	}

	start := l.pos
	c := l.src[l.pos]
	operand := l.operandPosition()
	switch {
	case c == ';':
		l.pos++
		return l.opNode(OpEOS, start), nil
	case isIdentStart(c):
		return l.word(operand)
	case !operand:
		return l.operator(false)
	case isDigit(c), c == '.' && l.pos+1 < l.end && isDigit(l.src[l.pos+1]):
		return l.number(start, false)
	case c == '"', c == '\'':
		return l.stringLiteral()
	case c == '(':
		return l.group()
	case c == '[', c == '{':
		return l.collection()
	case c == '@':
		return l.interceptor()
	}
	return l.operator(true)
}

func (l *lexer) opNode(op Op, start int) *Node {
	return &Node{Kind: KindOperator, Op: op, Span: Span{start, l.pos}, Text: l.src[start:l.pos]}
}

// skipSpace skips whitespace and comments.
func (l *lexer) skipSpace() error {
	for l.pos < l.end {
		c := l.src[l.pos]
		switch {
		case isSpace(c):
			l.pos++
		case c == '#', c == '/' && l.peek(1) == '/':
			for l.pos < l.end && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.peek(1) == '*':
			idx := strings.Index(l.src[l.pos+2:l.end], "*/")
			if idx < 0 {
				return l.errorf(l.pos, "unterminated block comment")
			}
			l.pos += idx + 4
		default:
			return nil
		}
	}
	return nil
}

// peek returns the byte k positions ahead of the cursor, or 0.
func (l *lexer) peek(k int) byte {
	if l.pos+k < l.end {
		return l.src[l.pos+k]
	}
	return 0
}

func (l *lexer) hasPrefix(s string) bool {
	return strings.HasPrefix(l.src[l.pos:l.end], s)
}

// scanWord consumes an identifier run.
func (l *lexer) scanWord() string {
	start := l.pos
	for l.pos < l.end && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	return l.src[start:l.pos]
}

// keyword consumes w if it appears at the cursor as a whole word.
func (l *lexer) keyword(w string) bool {
	if !l.hasPrefix(w) {
		return false
	}
	if next := l.pos + len(w); next < l.end && isIdentPart(l.src[next]) {
		return false
	}
	l.pos += len(w)
	return true
}

func (l *lexer) balanced(at int) (int, error) {
	end := MatchBalanced(l.src, at, l.end)
	if end == NoMatch {
		return 0, l.errorf(at, "unbalanced delimiter %q", l.src[at])
	}
	return end, nil
}

// sub compiles src[start:end] as a nested unit.
func (l *lexer) sub(start, end int) *Unit {
	return l.pctx.compileRange(l.env, start, end, l.depth+1)
}

// relaxedSub compiles a nested unit whose names resolve per element.
func (l *lexer) relaxedSub(start, end int) *Unit {
	l.pctx.relaxed++
	defer func() { l.pctx.relaxed-- }()
	return l.sub(start, end)
}

// list compiles the comma separated units of src[start:end].
func (l *lexer) list(start, end int) ([]*Unit, error) {
	if trimmed := trimSpan(l.src, Span{start, end}); trimmed.Start == trimmed.End {
		return nil, nil
	}
	parts := splitTopLevel(l.src, start, end, ',')
	units := make([]*Unit, 0, len(parts))
	for _, part := range parts {
		part = trimSpan(l.src, part)
		if part.Start == part.End {
			return nil, l.errorf(part.Start, "empty argument")
		}
		units = append(units, l.sub(part.Start, part.End))
	}
	return units, nil
}

// lookupType resolves a type name through imports and the type registry.
func (l *lexer) lookupType(name string) (*host.Type, bool) {
	if t, ok := l.env.imports[name].(*host.Type); ok {
		return t, true
	}
	if t, ok := l.env.types.Lookup(name); ok {
		return t, true
	}
	return l.env.types.Qualified(name)
}

// word handles identifiers, keywords and word operators.
func (l *lexer) word(operand bool) (*Node, error) {
	start := l.pos
	w := l.scanWord()

	if !operand {
		if op, ok := wordOperators()[w]; ok {
			return &Node{Kind: KindOperator, Op: op, Span: Span{start, l.pos}, Text: w}, nil
		}
		if fn, ok := l.pctx.cfg.Operators[w]; ok {
			return &Node{Kind: KindOperator, Op: OpCustom, Name: w, custom: fn, Span: Span{start, l.pos}, Text: w}, nil
		}
		return nil, l.errorf(start, "unexpected %q, expected an operator", w)
	}

	switch w {
	case "if":
		return l.ifBlock(start)
	case "while":
		return l.whileBlock(start)
	case "foreach", "for":
		return l.foreachBlock(start, w)
	case "with":
		return l.withBlock(start)
	case "new":
		return l.newObject(start)
	case "return":
		return l.tail(start, KindReturn)
	case "assert":
		return l.tail(start, KindAssert)
	case "import", "import_static":
		if err := l.importDecl(start, w == "import_static"); err != nil {
			return nil, err
		}
		return l.scan()
	case "not":
		l.togglePrefix(FlagNegate, start)
		return l.scan()
	case "else":
		return nil, l.errorf(start, "else without if")
	}

	if v, ok := literalValue(w); ok && l.peek(0) != '.' {
		return &Node{Kind: KindLiteral, Value: v, Span: Span{start, l.pos}, Text: w}, nil
	}
	if t, ok := l.lookupType(w); ok {
		n, ok, err := l.declaration(start, t)
		if err != nil || ok {
			return n, err
		}
	}

	l.pos = start
	return l.identifier(start)
}

// declaration parses `Type name [= expr]`. It reports false, leaving the
// cursor untouched, when the text is not a declaration.
func (l *lexer) declaration(start int, t *host.Type) (*Node, bool, error) {
	save := l.pos
	for l.pos < l.end && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t') {
		l.pos++
	}
	if l.pos == save || l.pos >= l.end || !isIdentStart(l.src[l.pos]) {
		l.pos = save
		return nil, false, nil
	}
	name := l.scanWord()
	_, isOp := wordOperators()[name]
	_, isCustom := l.pctx.cfg.Operators[name]
	if isOp || isCustom || reservedWords[name] {
		l.pos = save
		return nil, false, nil
	}

	if err := l.skipSpace(); err != nil {
		return nil, false, err
	}
	var rhs *Unit
	end := l.pos
	switch {
	case l.pos >= l.end || l.src[l.pos] == ';':
	case l.src[l.pos] == '=' && l.peek(1) != '=':
		rhsStart := l.pos + 1
		end = findStatementEnd(l.src, rhsStart, l.end, l.ternary > 0)
		if sp := trimSpan(l.src, Span{rhsStart, end}); sp.Start == sp.End {
			return nil, false, l.errorf(l.pos, "missing value in declaration of %s", name)
		}
		rhs = l.sub(rhsStart, end)
	default:
		l.pos = save
		return nil, false, nil
	}
	if isReservedName(name) {
		return nil, false, l.errorf(start, "cannot declare %s", name)
	}

	l.pos = end
	l.pctx.declared[name] = true
	return &Node{
		Kind:  KindAssign,
		Flags: FlagAssign | FlagDeclare,
		Name:  name,
		typ:   t,
		sub:   rhs,
		Span:  Span{start, end},
		Text:  l.src[start:end],
	}, true, nil
}

// identifier parses a path, then an assignment or postfix increment that
// follows it.
func (l *lexer) identifier(start int) (*Node, error) {
	p := &path{}
	nameStart := l.pos
	name := l.scanWord()
	p.segs = append(p.segs, segment{kind: segName, name: name, span: Span{nameStart, l.pos}})
	flags, err := l.segments(p)
	if err != nil {
		return nil, err
	}
	pathEnd := l.pos

	save := l.pos
	if err := l.skipSpace(); err != nil {
		return nil, err
	}
	if op, width, ok := l.assignOperator(); ok {
		return l.assignment(start, p, flags, op, width)
	}
	if l.hasPrefix("++") || l.hasPrefix("--") {
		op := OpAdd
		if l.src[l.pos] == '-' {
			op = OpSub
		}
		l.pos += 2
		return l.incDec(start, p, flags, op, 0)
	}
	l.pos = save

	l.checkStrictRead(p, nameStart)
	return &Node{
		Kind:  KindIdentifier,
		Flags: flags,
		path:  p,
		Name:  name,
		Span:  Span{start, pathEnd},
		Text:  l.src[start:pathEnd],
	}, nil
}

// segments parses the contiguous `.name`, `.?name`, `(args)` and `[key]`
// suffixes of a path.
func (l *lexer) segments(p *path) (Flags, error) {
	var flags Flags
	for l.pos < l.end {
		switch l.src[l.pos] {
		case '(':
			if len(p.segs) == 0 || p.segs[len(p.segs)-1].kind != segName {
				return flags, l.errorf(l.pos, "unexpected '('")
			}
			end, err := l.balanced(l.pos)
			if err != nil {
				return flags, err
			}
			args, err := l.list(l.pos+1, end)
			if err != nil {
				return flags, err
			}
			seg := &p.segs[len(p.segs)-1]
			seg.kind = segCall
			seg.args = args
			seg.span.End = end + 1
			flags |= FlagCall
			l.pos = end + 1
		case '[':
			end, err := l.balanced(l.pos)
			if err != nil {
				return flags, err
			}
			key := trimSpan(l.src, Span{l.pos + 1, end})
			if key.Start == key.End {
				return flags, l.errorf(l.pos, "empty index")
			}
			p.segs = append(p.segs, segment{kind: segIndex, index: l.sub(key.Start, key.End), span: Span{l.pos, end + 1}})
			flags |= FlagIndex
			l.pos = end + 1
		case '.':
			j := l.pos + 1
			nullSafe := j < l.end && l.src[j] == '?'
			if nullSafe {
				j++
			}
			if j >= l.end || !isIdentStart(l.src[j]) {
				return flags, l.errorf(l.pos, "expected a name after '.'")
			}
			l.pos = j
			name := l.scanWord()
			p.segs = append(p.segs, segment{kind: segName, name: name, nullSafe: nullSafe, span: Span{j, l.pos}})
			flags |= FlagDeep
			if nullSafe {
				flags |= FlagNullSafe
			}
		default:
			return flags, nil
		}
	}
	return flags, nil
}

// continuation extends a value-producing node with a trailing path, as in
// `[1, 2].size()` or `new Foo().bar`.
func (l *lexer) continuation(n *Node) (*Node, error) {
	c := l.peek(0)
	if c != '[' && !(c == '.' && (isIdentStart(l.peek(1)) || l.peek(1) == '?')) {
		return n, nil
	}
	p := &path{}
	flags, err := l.segments(p)
	if err != nil {
		return nil, err
	}
	if len(p.segs) > 0 {
		n.path = p
		n.Flags |= flags
		n.Span.End = l.pos
		n.Text = l.src[n.Span.Start:n.Span.End]
	}
	return n, nil
}

// assignOperator matches an assignment operator at the cursor.
func (l *lexer) assignOperator() (Op, int, bool) {
	for _, s := range []string{"+=", "-=", "*=", "/=", "%="} {
		if l.hasPrefix(s) {
			return compoundOps[s], 2, true
		}
	}
	if l.peek(0) == '=' && l.peek(1) != '=' {
		return OpNone, 1, true
	}
	return OpNone, 0, false
}

func (l *lexer) checkTarget(p *path, start int) error {
	if p.segs[len(p.segs)-1].kind == segCall {
		return l.errorf(start, "cannot assign to a method call")
	}
	if p.simple() && isReservedName(p.root()) {
		return l.errorf(start, "cannot assign to %s", p.root())
	}
	return nil
}

func (l *lexer) assignment(start int, p *path, flags Flags, op Op, width int) (*Node, error) {
	if err := l.checkTarget(p, start); err != nil {
		return nil, err
	}
	if l.pctx.cfg.Strict && l.pctx.relaxed == 0 && p.simple() && !l.pctx.known(p.root()) {
		l.pctx.report(SeverityFatal, start, "untyped assignment to undeclared variable %q", p.root())
	}

	rhsStart := l.pos + width
	end := findStatementEnd(l.src, rhsStart, l.end, l.ternary > 0)
	if sp := trimSpan(l.src, Span{rhsStart, end}); sp.Start == sp.End {
		return nil, l.errorf(l.pos, "missing value after %q", l.src[l.pos:rhsStart])
	}
	rhs := l.sub(rhsStart, end)
	l.pos = end
	return &Node{
		Kind:   KindAssign,
		Flags:  flags | FlagAssign,
		Op:     op,
		Name:   p.root(),
		target: p,
		sub:    rhs,
		Span:   Span{start, end},
		Text:   l.src[start:end],
	}, nil
}

func (l *lexer) incDec(start int, p *path, flags Flags, op Op, extra Flags) (*Node, error) {
	if err := l.checkTarget(p, start); err != nil {
		return nil, err
	}
	l.checkStrictRead(p, start)
	return &Node{
		Kind:   KindIncDec,
		Flags:  flags | FlagAssign | extra,
		Op:     op,
		Name:   p.root(),
		target: p,
		Span:   Span{start, l.pos},
		Text:   l.src[start:l.pos],
	}, nil
}

// checkStrictRead reports reads of unknown names in strict mode. Qualified
// type paths such as `lang.Math.PI` are allowed.
func (l *lexer) checkStrictRead(p *path, offset int) {
	if !l.pctx.cfg.Strict || l.pctx.relaxed > 0 || p.segs[0].kind != segName {
		return
	}
	if l.pctx.known(p.root()) {
		return
	}
	for n := len(p.segs); n > 1; n-- {
		if name, ok := p.qualifiedPrefix(n); ok {
			if _, ok := l.env.types.Qualified(name); ok {
				return
			}
		}
	}
	l.pctx.report(SeverityFatal, offset, "undeclared variable %q", p.root())
}

// operator scans symbolic operators and, in operand position, prefix
// operators.
func (l *lexer) operator(operand bool) (*Node, error) {
	start := l.pos
	c := l.src[l.pos]

	if operand {
		switch {
		case l.hasPrefix("++"), l.hasPrefix("--"):
			return l.prefixIncDec(start)
		case c == '!' && l.peek(1) != '=':
			l.pos++
			l.togglePrefix(FlagNegate, start)
			return l.scan()
		case c == '~':
			l.pos++
			l.togglePrefix(FlagInvert, start)
			return l.scan()
		case c == '-':
			l.pos++
			if isDigit(l.peek(0)) || (l.peek(0) == '.' && isDigit(l.peek(1))) {
				return l.number(start, true)
			}
			l.togglePrefix(FlagMinus, start)
			return l.scan()
		case c == '+':
			l.pos++
			return l.scan()
		}
		return nil, l.errorf(start, "unexpected %q, expected an operand", string(c))
	}

	// `1--1` is a decrement applied to a literal, not a minus of a minus.
	if l.hasPrefix("++") || l.hasPrefix("--") {
		op := l.src[start : start+2]
		next := start + 2
		for next < l.end && isSpace(l.src[next]) {
			next++
		}
		if next < l.end && isIdentStart(l.src[next]) {
			return nil, l.errorf(start, "unexpected %s after an operand", op)
		}
		return nil, l.errorf(start, "expected a variable after %s", op)
	}

	for _, s := range symbolOps {
		if l.hasPrefix(s.text) {
			l.pos += len(s.text)
			return l.opNode(s.op, start), nil
		}
	}
	if c == '=' {
		return nil, l.errorf(start, "invalid assignment target")
	}
	return nil, l.errorf(start, "unexpected character %q", string(c))
}

func (l *lexer) prefixIncDec(start int) (*Node, error) {
	op := OpAdd
	if l.src[l.pos] == '-' {
		op = OpSub
	}
	l.pos += 2
	if err := l.skipSpace(); err != nil {
		return nil, err
	}
	if l.pos >= l.end || !isIdentStart(l.src[l.pos]) {
		return nil, l.errorf(start, "expected a variable after %s", l.src[start:start+2])
	}
	p := &path{}
	nameStart := l.pos
	name := l.scanWord()
	p.segs = append(p.segs, segment{kind: segName, name: name, span: Span{nameStart, l.pos}})
	flags, err := l.segments(p)
	if err != nil {
		return nil, err
	}
	return l.incDec(start, p, flags, op, FlagPrefix)
}
