package expr

import "strings"

// segKind is the navigation step a path segment performs.
type segKind uint8

const (
	segName  segKind = iota // .name
	segCall                 // .name(args)
	segIndex                // [key]
)

// segment is one step of a parsed path such as `a.b(1)[0]`.
type segment struct {
	kind     segKind
	name     string
	args     []*Unit
	index    *Unit
	nullSafe bool // reached through `.?`
	span     Span
}

// path is the parsed form of an identifier chain. For identifier nodes the
// first segment is the root name or call; for continuations off literals,
// collections and constructors every segment applies to the produced value.
type path struct {
	segs []segment
}

// root returns the leading name.
func (p *path) root() string {
	if p == nil || len(p.segs) == 0 {
		return ""
	}
	return p.segs[0].name
}

// simple reports whether the path is a single bare name.
func (p *path) simple() bool {
	return len(p.segs) == 1 && p.segs[0].kind == segName
}

// qualifiedPrefix joins the leading name segments 0..n-1 with dots. It
// returns false if any of them is a call or index.
func (p *path) qualifiedPrefix(n int) (string, bool) {
	if n > len(p.segs) {
		return "", false
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		if p.segs[i].kind != segName {
			return "", false
		}
		parts[i] = p.segs[i].name
	}
	return strings.Join(parts, "."), true
}

func (p *path) String() string {
	var b strings.Builder
	for i, s := range p.segs {
		switch s.kind {
		case segIndex:
			b.WriteString("[...]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
			if s.nullSafe {
				b.WriteByte('?')
			}
		}
		b.WriteString(s.name)
		if s.kind == segCall {
			b.WriteString("(...)")
		}
	}
	return b.String()
}
