package expr

import (
	"errors"
	"math/big"
	"strconv"
	"strings"

	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
)

// number scans a numeric literal. The cursor sits on its first digit; neg
// is set when a unary minus was consumed at start.
func (l *lexer) number(start int, neg bool) (*Node, error) {
	numStart := l.pos
	hex := l.peek(0) == '0' && (l.peek(1) == 'x' || l.peek(1) == 'X')
	isFloat := false

	if hex {
		l.pos += 2
		for l.pos < l.end && isHexDigit(l.src[l.pos]) {
			l.pos++
		}
		if l.pos == numStart+2 {
			return nil, l.errorf(start, "malformed hex literal")
		}
	} else {
		for l.pos < l.end && isDigit(l.src[l.pos]) {
			l.pos++
		}
		if l.peek(0) == '.' && isDigit(l.peek(1)) {
			isFloat = true
			l.pos++
			for l.pos < l.end && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
		if c := l.peek(0); c == 'e' || c == 'E' {
			k := 1
			if s := l.peek(1); s == '+' || s == '-' {
				k = 2
			}
			if isDigit(l.peek(k)) {
				isFloat = true
				l.pos += k
				for l.pos < l.end && isDigit(l.src[l.pos]) {
					l.pos++
				}
			}
		}
	}

	text := l.src[numStart:l.pos]
	var suffix byte
	switch c := l.peek(0); c {
	case 'L', 'l', 'D', 'd', 'F', 'f', 'B', 'b', 'I':
		if !hex || c == 'L' || c == 'l' {
			suffix = c
			l.pos++
		}
	}
	if l.pos < l.end && isIdentPart(l.src[l.pos]) {
		return nil, l.errorf(start, "malformed number %q", l.src[start:l.pos+1])
	}
	if neg {
		text = "-" + text
	}

	v, err := parseNumber(text, hex, isFloat, suffix)
	if err != nil {
		return nil, l.errorf(start, "invalid number %q: %v", l.src[start:l.pos], err)
	}
	return &Node{
		Kind:  KindLiteral,
		Flags: FlagNumeric,
		Value: v,
		Span:  Span{start, l.pos},
		Text:  l.src[start:l.pos],
	}, nil
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

var errLongFloat = errors.New("integer suffix on a decimal literal")

// parseNumber converts literal text according to its suffix.
func parseNumber(text string, hex, isFloat bool, suffix byte) (any, error) {
	switch suffix {
	case 'D', 'd', 'F', 'f':
		return strconv.ParseFloat(text, 64)
	case 'B', 'b':
		f, _, err := big.ParseFloat(text, 10, host.BigPrecision, big.ToNearestEven)
		return f, err
	case 'I':
		if isFloat {
			return nil, errLongFloat
		}
		i, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return nil, strconv.ErrSyntax
		}
		return i, nil
	case 'L', 'l':
		if isFloat {
			return nil, errLongFloat
		}
	}
	if isFloat {
		return strconv.ParseFloat(text, 64)
	}

	base := 10
	digits := text
	if hex {
		base = 16
		digits = strings.Replace(strings.Replace(text, "0x", "", 1), "0X", "", 1)
	}
	i, err := strconv.ParseInt(digits, base, 64)
	if err == nil {
		return i, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		if b, ok := new(big.Int).SetString(digits, base); ok {
			return b, nil
		}
	}
	return nil, err
}

// stringLiteral scans a quoted string, unescaping as it goes.
func (l *lexer) stringLiteral() (*Node, error) {
	start := l.pos
	quote := l.src[start]
	var b strings.Builder
	i := start + 1
	for {
		if i >= l.end {
			return nil, l.errorf(start, "unterminated string literal")
		}
		c := l.src[i]
		if c == quote {
			break
		}
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= l.end {
			return nil, l.errorf(start, "unterminated string literal")
		}
		switch esc := l.src[i+1]; esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '0':
			b.WriteByte(0)
		case '\\', '\'', '"':
			b.WriteByte(esc)
		case 'u':
			if i+6 > l.end {
				return nil, l.errorf(i, "truncated unicode escape")
			}
			r, err := strconv.ParseUint(l.src[i+2:i+6], 16, 32)
			if err != nil {
				return nil, l.errorf(i, "invalid unicode escape %q", l.src[i:i+6])
			}
			b.WriteRune(rune(r))
			i += 6
			continue
		default:
			return nil, l.errorf(i, "invalid escape sequence \\%c", esc)
		}
		i += 2
	}
	l.pos = i + 1
	n := &Node{Kind: KindLiteral, Value: b.String(), Span: Span{start, l.pos}, Text: l.src[start:l.pos]}
	return l.continuation(n)
}

// group handles a parenthesized range: a cast `(Type) x`, a fold
// `(expr in coll [if filter])` or a substatement.
func (l *lexer) group() (*Node, error) {
	start := l.pos
	end, err := l.balanced(start)
	if err != nil {
		return nil, err
	}
	inner := trimSpan(l.src, Span{start + 1, end})
	if inner.Start == inner.End {
		return nil, l.errorf(start, "empty parentheses")
	}
	text := l.src[inner.Start:inner.End]

	if isWord(text) {
		if t, ok := l.lookupType(text); ok && l.castFollows(end+1) {
			l.pos = end + 1
			operand, err := l.operandNode("cast to " + text)
			if err != nil {
				return nil, err
			}
			return &Node{
				Kind:  KindCast,
				typ:   t,
				inner: operand,
				Span:  Span{start, l.pos},
				Text:  l.src[start:l.pos],
			}, nil
		}
	}

	if in, ok := findWord(l.src, inner, "in"); ok {
		return l.fold(start, end, inner, in)
	}

	sub := l.sub(inner.Start, inner.End)
	l.pos = end + 1
	n := &Node{Kind: KindSubstatement, sub: sub, Span: Span{start, l.pos}, Text: l.src[start:l.pos]}
	if sub.LiteralOnly {
		n = l.pctx.literalNode(l.env, n.Span, sub.literal())
	}
	return l.continuation(n)
}

// isWord reports whether s is a bare identifier, possibly dotted.
func isWord(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) && !(s[i] == '.' && i+1 < len(s) && isIdentStart(s[i+1])) {
			return false
		}
	}
	return true
}

// castFollows reports whether an operand starts at i, making a preceding
// `(Type)` a cast rather than a parenthesized name.
func (l *lexer) castFollows(i int) bool {
	for i < l.end && isSpace(l.src[i]) {
		i++
	}
	if i >= l.end {
		return false
	}
	c := l.src[i]
	switch {
	case isDigit(c), c == '"', c == '\'', c == '(':
		return true
	case isIdentStart(c):
		j := i
		for j < l.end && isIdentPart(l.src[j]) {
			j++
		}
		w := l.src[i:j]
		_, isOp := wordOperators()[w]
		_, isCustom := l.pctx.cfg.Operators[w]
		return !isOp && !isCustom
	}
	return false
}

// findWord locates w as a whole word at the top level of sp.
func findWord(src string, sp Span, w string) (Span, bool) {
	found := Span{NoMatch, NoMatch}
	scanTopLevel(src, sp.Start, sp.End, func(i int) bool {
		if !strings.HasPrefix(src[i:sp.End], w) {
			return true
		}
		if i > sp.Start && (isIdentPart(src[i-1]) || src[i-1] == '.') {
			return true
		}
		if j := i + len(w); j < sp.End && isIdentPart(src[j]) {
			return true
		}
		found = Span{i, i + len(w)}
		return false
	})
	return found, found.Start != NoMatch
}

func (l *lexer) fold(start, end int, inner, in Span) (*Node, error) {
	exprSpan := trimSpan(l.src, Span{inner.Start, in.Start})
	rest := Span{in.End, inner.End}
	if exprSpan.Start == exprSpan.End {
		return nil, l.errorf(start, "fold is missing its projection")
	}

	spec := &foldSpec{}
	sourceSpan := rest
	if cond, ok := findWord(l.src, rest, "if"); ok {
		sourceSpan = Span{rest.Start, cond.Start}
		filter := trimSpan(l.src, Span{cond.End, rest.End})
		if filter.Start == filter.End {
			return nil, l.errorf(cond.Start, "fold filter is empty")
		}
		spec.filter = l.relaxedSub(filter.Start, filter.End)
	}
	sourceSpan = trimSpan(l.src, sourceSpan)
	if sourceSpan.Start == sourceSpan.End {
		return nil, l.errorf(in.Start, "fold is missing its collection")
	}
	spec.source = l.sub(sourceSpan.Start, sourceSpan.End)
	spec.expr = l.relaxedSub(exprSpan.Start, exprSpan.End)

	l.pos = end + 1
	n := &Node{Kind: KindFold, Flags: FlagFold, fold: spec, Span: Span{start, l.pos}, Text: l.src[start:l.pos]}
	return l.continuation(n)
}

// collection handles `[a, b]`, `[k: v]`, `[:]` and `{a, b}`.
func (l *lexer) collection() (*Node, error) {
	start := l.pos
	open := l.src[start]
	end, err := l.balanced(start)
	if err != nil {
		return nil, err
	}
	inner := trimSpan(l.src, Span{start + 1, end})
	spec := &collectionSpec{}

	switch text := l.src[inner.Start:inner.End]; {
	case text == "":
	case open == '[' && text == ":":
		spec.isMap = true
	default:
		parts := splitTopLevel(l.src, inner.Start, inner.End, ',')
		for i, part := range parts {
			part = trimSpan(l.src, part)
			if part.Start == part.End {
				if i == len(parts)-1 && i > 0 {
					continue
				}
				return nil, l.errorf(part.Start, "empty collection element")
			}
			colon := NoMatch
			if open == '[' {
				if c := findStatementEnd(l.src, part.Start, part.End, true); c < part.End && l.src[c] == ':' {
					colon = c
				}
			}
			if i == 0 {
				spec.isMap = colon != NoMatch
			} else if spec.isMap != (colon != NoMatch) {
				return nil, l.errorf(part.Start, "cannot mix list elements and map entries")
			}
			if !spec.isMap {
				spec.elems = append(spec.elems, l.sub(part.Start, part.End))
				continue
			}
			key := trimSpan(l.src, Span{part.Start, colon})
			val := trimSpan(l.src, Span{colon + 1, part.End})
			if key.Start == key.End || val.Start == val.End {
				return nil, l.errorf(part.Start, "incomplete map entry")
			}
			spec.keys = append(spec.keys, l.mapKey(key))
			spec.elems = append(spec.elems, l.sub(val.Start, val.End))
		}
	}

	l.pos = end + 1
	n := &Node{Kind: KindCollection, coll: spec, Span: Span{start, l.pos}, Text: l.src[start:l.pos]}
	return l.continuation(n)
}

// mapKey compiles a map key. A bare name is taken as its own string, so
// `[name: "x"]` keys on "name".
func (l *lexer) mapKey(sp Span) *Unit {
	text := l.src[sp.Start:sp.End]
	if _, lit := literalValue(text); isWord(text) && !strings.Contains(text, ".") && !lit {
		return &Unit{
			Source:      text,
			SourceName:  l.env.sourceName,
			LiteralOnly: true,
			nodes:       []*Node{{Kind: KindLiteral, Value: text, Span: sp, Text: text}},
			env:         l.env,
			span:        sp,
		}
	}
	return l.sub(sp.Start, sp.End)
}

// interceptor handles `@name operand`.
func (l *lexer) interceptor() (*Node, error) {
	start := l.pos
	l.pos++
	if l.pos >= l.end || !isIdentStart(l.src[l.pos]) {
		return nil, l.errorf(start, "expected an interceptor name after '@'")
	}
	name := l.scanWord()
	ic, ok := l.pctx.cfg.Interceptors[name]
	if !ok {
		return nil, l.errorf(start, "unknown interceptor @%s", name)
	}
	inner, err := l.operandNode("@" + name)
	if err != nil {
		return nil, err
	}
	return &Node{
		Kind:  KindIntercept,
		Name:  name,
		icept: ic,
		inner: inner,
		Span:  Span{start, l.pos},
		Text:  l.src[start:l.pos],
	}, nil
}
