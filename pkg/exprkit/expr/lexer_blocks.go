package expr

import (
	"strings"

	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
)

// condition captures the parenthesized head following a keyword.
func (l *lexer) condition(kw string) (Span, error) {
	if err := l.skipSpace(); err != nil {
		return Span{}, err
	}
	if l.pos >= l.end || l.src[l.pos] != '(' {
		return Span{}, l.errorf(l.pos, "expected '(' after %s", kw)
	}
	end, err := l.balanced(l.pos)
	if err != nil {
		return Span{}, err
	}
	sp := trimSpan(l.src, Span{l.pos + 1, end})
	if sp.Start == sp.End {
		return Span{}, l.errorf(l.pos, "empty condition after %s", kw)
	}
	l.pos = end + 1
	return sp, nil
}

// body captures a braced block, or a single statement up to and including
// its terminating ';'.
func (l *lexer) body(kw string) (*Unit, error) {
	if err := l.skipSpace(); err != nil {
		return nil, err
	}
	if l.pos >= l.end {
		return nil, l.errorf(l.pos, "expected a body after %s", kw)
	}
	if l.src[l.pos] == '{' {
		end, err := l.balanced(l.pos)
		if err != nil {
			return nil, err
		}
		u := l.sub(l.pos+1, end)
		l.pos = end + 1
		return u, nil
	}
	end := findStatementEnd(l.src, l.pos, l.end, false)
	u := l.sub(l.pos, end)
	l.pos = end
	if l.pos < l.end {
		l.pos++
	}
	return u, nil
}

func (l *lexer) requireStatementStart(start int, kw string) error {
	if !l.atStatementStart() {
		return l.errorf(start, "%s must begin a statement", kw)
	}
	return nil
}

func (l *lexer) blockNode(kind Kind, start int, spec *blockSpec) *Node {
	return &Node{Kind: kind, block: spec, Span: Span{start, l.pos}, Text: l.src[start:l.pos]}
}

// ifBlock parses `if (c) body [else if (c) body]* [else body]`.
func (l *lexer) ifBlock(start int) (*Node, error) {
	if err := l.requireStatementStart(start, "if"); err != nil {
		return nil, err
	}
	spec := &blockSpec{}
	for {
		cond, err := l.condition("if")
		if err != nil {
			return nil, err
		}
		spec.conds = append(spec.conds, l.sub(cond.Start, cond.End))
		body, err := l.body("if")
		if err != nil {
			return nil, err
		}
		spec.bodies = append(spec.bodies, body)

		save := l.pos
		if err := l.skipSpace(); err != nil {
			return nil, err
		}
		if !l.keyword("else") {
			l.pos = save
			break
		}
		if err := l.skipSpace(); err != nil {
			return nil, err
		}
		if l.keyword("if") {
			continue
		}
		if spec.orElse, err = l.body("else"); err != nil {
			return nil, err
		}
		break
	}
	return l.blockNode(KindIf, start, spec), nil
}

func (l *lexer) whileBlock(start int) (*Node, error) {
	if err := l.requireStatementStart(start, "while"); err != nil {
		return nil, err
	}
	cond, err := l.condition("while")
	if err != nil {
		return nil, err
	}
	spec := &blockSpec{conds: []*Unit{l.sub(cond.Start, cond.End)}}
	body, err := l.body("while")
	if err != nil {
		return nil, err
	}
	spec.bodies = []*Unit{body}
	return l.blockNode(KindWhile, start, spec), nil
}

// foreachBlock parses `foreach ([Type] x : coll) body` and the C-style
// `for (init; cond; step) body`.
func (l *lexer) foreachBlock(start int, kw string) (*Node, error) {
	if err := l.requireStatementStart(start, kw); err != nil {
		return nil, err
	}
	head, err := l.condition(kw)
	if err != nil {
		return nil, err
	}

	spec := &blockSpec{}
	kind := KindForeach
	clauses := splitTopLevel(l.src, head.Start, head.End, ';')
	switch len(clauses) {
	case 3:
		kind = KindFor
		if sp := trimSpan(l.src, clauses[0]); sp.Start < sp.End {
			spec.init = l.sub(sp.Start, sp.End)
		}
		if sp := trimSpan(l.src, clauses[1]); sp.Start < sp.End {
			spec.conds = []*Unit{l.sub(sp.Start, sp.End)}
		}
		if sp := trimSpan(l.src, clauses[2]); sp.Start < sp.End {
			spec.step = l.sub(sp.Start, sp.End)
		}
	case 1:
		colon := findStatementEnd(l.src, head.Start, head.End, true)
		if colon >= head.End || l.src[colon] != ':' {
			return nil, l.errorf(head.Start, "expected ':' in %s header", kw)
		}
		decl := strings.Fields(l.src[head.Start:colon])
		switch len(decl) {
		case 1:
			spec.varName = decl[0]
		case 2:
			t, ok := l.lookupType(decl[0])
			if !ok {
				return nil, l.errorf(head.Start, "unknown type %q", decl[0])
			}
			spec.varType, spec.varName = t, decl[1]
		default:
			return nil, l.errorf(head.Start, "malformed %s variable", kw)
		}
		if !isWord(spec.varName) || strings.Contains(spec.varName, ".") || isReservedName(spec.varName) {
			return nil, l.errorf(head.Start, "invalid loop variable %q", spec.varName)
		}
		src := trimSpan(l.src, Span{colon + 1, head.End})
		if src.Start == src.End {
			return nil, l.errorf(colon, "missing collection in %s header", kw)
		}
		spec.source = l.sub(src.Start, src.End)
		l.pctx.declared[spec.varName] = true
	default:
		return nil, l.errorf(head.Start, "for header needs three clauses")
	}

	body, err := l.body(kw)
	if err != nil {
		return nil, err
	}
	spec.bodies = []*Unit{body}
	return l.blockNode(kind, start, spec), nil
}

// withBlock parses `with (obj) { a = 1, b += 2 }`.
func (l *lexer) withBlock(start int) (*Node, error) {
	head, err := l.condition("with")
	if err != nil {
		return nil, err
	}
	obj := l.sub(head.Start, head.End)

	if err := l.skipSpace(); err != nil {
		return nil, err
	}
	if l.pos >= l.end || l.src[l.pos] != '{' {
		return nil, l.errorf(l.pos, "expected '{' after with")
	}
	end, err := l.balanced(l.pos)
	if err != nil {
		return nil, err
	}

	var entries []withAssign
	for _, part := range splitTopLevel(l.src, l.pos+1, end, ',') {
		for _, stmt := range splitTopLevel(l.src, part.Start, part.End, ';') {
			stmt = trimSpan(l.src, stmt)
			if stmt.Start == stmt.End {
				continue
			}
			entry, err := l.withEntry(stmt)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	l.pos = end + 1
	return &Node{
		Kind: KindWith,
		sub:  obj,
		with: entries,
		Span: Span{start, l.pos},
		Text: l.src[start:l.pos],
	}, nil
}

func (l *lexer) withEntry(sp Span) (withAssign, error) {
	i := sp.Start
	for i < sp.End && isIdentPart(l.src[i]) {
		i++
	}
	name := l.src[sp.Start:i]
	if name == "" || !isIdentStart(name[0]) {
		return withAssign{}, l.errorf(sp.Start, "expected a property name in with block")
	}
	for i < sp.End && isSpace(l.src[i]) {
		i++
	}

	op, width := OpNone, 0
	rest := l.src[i:sp.End]
	for _, s := range []string{"+=", "-=", "*=", "/=", "%=", "="} {
		if strings.HasPrefix(rest, s) && !strings.HasPrefix(rest, "==") {
			op, width = compoundOps[s], len(s)
			break
		}
	}
	if width == 0 {
		return withAssign{}, l.errorf(i, "expected an assignment to %s in with block", name)
	}
	rhs := trimSpan(l.src, Span{i + width, sp.End})
	if rhs.Start == rhs.End {
		return withAssign{}, l.errorf(i, "missing value for %s in with block", name)
	}
	return withAssign{
		name: name,
		op:   op,
		rhs:  l.relaxedSub(rhs.Start, rhs.End),
		span: sp,
	}, nil
}

// newObject parses `new Type(args)` with an optional continuation.
func (l *lexer) newObject(start int) (*Node, error) {
	if err := l.skipSpace(); err != nil {
		return nil, err
	}
	nameStart := l.pos
	if l.pos >= l.end || !isIdentStart(l.src[l.pos]) {
		return nil, l.errorf(start, "expected a type name after new")
	}
	l.scanWord()
	for l.peek(0) == '.' && isIdentStart(l.peek(1)) {
		l.pos++
		l.scanWord()
	}
	name := l.src[nameStart:l.pos]
	t, ok := l.lookupType(name)
	if !ok {
		return nil, l.errorf(nameStart, "unknown type %q", name)
	}

	if err := l.skipSpace(); err != nil {
		return nil, err
	}
	if l.pos >= l.end || l.src[l.pos] != '(' {
		return nil, l.errorf(l.pos, "expected '(' after new %s", name)
	}
	end, err := l.balanced(l.pos)
	if err != nil {
		return nil, err
	}
	args, err := l.list(l.pos+1, end)
	if err != nil {
		return nil, err
	}
	l.pos = end + 1
	n := &Node{
		Kind:  KindNew,
		Flags: FlagNew,
		typ:   t,
		args:  args,
		Name:  t.Name,
		Span:  Span{start, l.pos},
		Text:  l.src[start:l.pos],
	}
	return l.continuation(n)
}

// tail parses `return [expr]` and `assert expr`, which take the rest of
// the statement.
func (l *lexer) tail(start int, kind Kind) (*Node, error) {
	end := findStatementEnd(l.src, l.pos, l.end, l.ternary > 0)
	sp := trimSpan(l.src, Span{l.pos, end})
	n := &Node{Kind: kind, Span: Span{start, end}, Text: l.src[start:end]}
	if sp.Start < sp.End {
		n.sub = l.sub(sp.Start, sp.End)
	} else if kind == KindAssert {
		return nil, l.errorf(start, "assert needs an expression")
	}
	l.pos = end
	return n, nil
}

// importDecl handles `import a.B`, `import a.*`, `import_static a.B.m` and
// `import_static a.B.*`. Imports bind names at compile time and produce no
// node.
func (l *lexer) importDecl(start int, static bool) error {
	if err := l.requireStatementStart(start, "import"); err != nil {
		return err
	}
	end := findStatementEnd(l.src, l.pos, l.end, false)
	name := strings.TrimSpace(l.src[l.pos:end])
	l.pos = end
	if l.pos < l.end {
		l.pos++
	}
	if name == "" {
		return l.errorf(start, "import needs a name")
	}

	wildcard := strings.HasSuffix(name, ".*")
	name = strings.TrimSuffix(name, ".*")
	imports := l.pctx.imports

	if !static {
		if wildcard {
			types := l.env.types.InPackage(name)
			if len(types) == 0 {
				return l.errorf(start, "unknown package %q", name)
			}
			for _, t := range types {
				imports[t.Short()] = t
			}
			return nil
		}
		t, ok := l.env.types.Qualified(name)
		if !ok {
			return l.errorf(start, "unknown type %q", name)
		}
		imports[t.Short()] = t
		return nil
	}

	if wildcard {
		t, ok := l.env.types.Qualified(name)
		if !ok {
			return l.errorf(start, "unknown type %q", name)
		}
		importStatics(imports, t)
		return nil
	}
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return l.errorf(start, "import_static needs Type.member")
	}
	t, ok := l.env.types.Qualified(name[:dot])
	if !ok {
		return l.errorf(start, "unknown type %q", name[:dot])
	}
	member := name[dot+1:]
	if v, ok := t.Fields[member]; ok {
		imports[member] = v
		return nil
	}
	if fns := t.Funcs[member]; len(fns) > 0 {
		imports[member] = fns
		return nil
	}
	return l.errorf(start, "%s has no static member %q", t.Name, member)
}

func importStatics(imports map[string]any, t *host.Type) {
	for k, v := range t.Fields {
		imports[k] = v
	}
	for k, fns := range t.Funcs {
		imports[k] = fns
	}
}
