package expr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NoMatch is returned by MatchBalanced when the delimiter is never closed.
const NoMatch = -1

// closers maps each opening delimiter to its closing partner.
var closers = map[byte]byte{
	'(': ')',
	'[': ']',
	'{': '}',
}

// MatchBalanced returns the index of the delimiter closing the one at
// src[start], scanning no further than end. Quoted strings (with backslash
// escapes) are skipped, so delimiters inside them are not counted. It returns
// NoMatch when the delimiter is unbalanced.
func MatchBalanced(src string, start, end int) int {
	if start >= end || start >= len(src) {
		return NoMatch
	}
	open := src[start]
	closeCh, ok := closers[open]
	if !ok {
		return NoMatch
	}

	depth := 0
	for i := start; i < end; i++ {
		switch c := src[i]; c {
		case '"', '\'':
			j := skipString(src, i, end)
			if j == NoMatch {
				return NoMatch
			}
			i = j
		case open:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return NoMatch
}

// skipString returns the index of the quote closing the string that opens
// at src[start], or NoMatch.
func skipString(src string, start, end int) int {
	quote := src[start]
	for i := start + 1; i < end; i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return NoMatch
}

// scanTopLevel walks src[start:end] calling fn for every byte that sits
// outside strings and brackets. fn returns false to stop; scanTopLevel then
// returns that index, or end when fn never stops it.
func scanTopLevel(src string, start, end int, fn func(i int) bool) int {
	depth := 0
	for i := start; i < end; i++ {
		c := src[i]
		switch c {
		case '"', '\'':
			j := skipString(src, i, end)
			if j == NoMatch {
				return end
			}
			i = j
			continue
		case '(', '[', '{':
			depth++
			continue
		case ')', ']', '}':
			depth--
			continue
		}
		if depth == 0 && !fn(i) {
			return i
		}
	}
	return end
}

// splitTopLevel splits src[start:end] on sep outside strings and brackets,
// returning the [from, to) bounds of each part.
func splitTopLevel(src string, start, end int, sep byte) []Span {
	var parts []Span
	from := start
	scanTopLevel(src, start, end, func(i int) bool {
		if src[i] == sep {
			parts = append(parts, Span{from, i})
			from = i + 1
		}
		return true
	})
	return append(parts, Span{from, end})
}

// findStatementEnd returns the index of the next top-level ';' in
// src[start:end], or end. When ternary is true an unmatched ':' also ends
// the statement, so an assignment inside a ternary branch stops at the
// branch boundary.
func findStatementEnd(src string, start, end int, ternary bool) int {
	pending := 0
	return scanTopLevel(src, start, end, func(i int) bool {
		switch src[i] {
		case ';':
			return false
		case '?':
			if i == 0 || src[i-1] != '.' {
				pending++
			}
		case ':':
			if pending > 0 {
				pending--
				return true
			}
			return !ternary
		}
		return true
	})
}

// findLineEnd returns the index of the next top-level ';' or newline.
func findLineEnd(src string, start, end int) int {
	return scanTopLevel(src, start, end, func(i int) bool {
		return src[i] != ';' && src[i] != '\n'
	})
}

// position converts a byte offset into a 1-based line and column.
func position(src string, offset int) (line, col int) {
	if offset > len(src) {
		offset = len(src)
	}
	line = 1 + strings.Count(src[:offset], "\n")
	lineStart := strings.LastIndexByte(src[:offset], '\n') + 1
	col = 1 + utf8.RuneCountInString(src[lineStart:offset])
	return line, col
}

// excerptRadius is how many bytes of context surround an excerpt's offset.
const excerptRadius = 20

// excerpt returns a short single-line slice of src centered on offset.
func excerpt(src string, offset int) string {
	from := max(0, offset-excerptRadius)
	to := min(len(src), offset+excerptRadius)
	for from > 0 && !utf8.RuneStart(src[from]) {
		from--
	}
	for to < len(src) && !utf8.RuneStart(src[to]) {
		to++
	}
	out := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, src[from:to])
	return strings.TrimSpace(out)
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isSpace(c byte) bool {
	return c < utf8.RuneSelf && unicode.IsSpace(rune(c))
}

// trimSpan narrows a span to exclude surrounding whitespace.
func trimSpan(src string, sp Span) Span {
	for sp.Start < sp.End && isSpace(src[sp.Start]) {
		sp.Start++
	}
	for sp.End > sp.Start && isSpace(src[sp.End-1]) {
		sp.End--
	}
	return sp
}
