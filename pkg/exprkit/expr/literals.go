package expr

import "sync"

// thisName names the evaluation context object.
const thisName = "this"

// elemName names the current element inside a fold.
const elemName = "$"

var (
	literalTable map[string]any
	literalOnce  sync.Once
)

// literals returns the process-wide keyword literal table. It is built once
// and never written afterwards, so concurrent readers need no locking.
func literals() map[string]any {
	literalOnce.Do(func() {
		literalTable = map[string]any{
			"true":  true,
			"false": false,
			"null":  nil,
			"nil":   nil,
			"empty": Empty,
		}
	})
	return literalTable
}

// literalValue looks up a keyword literal.
func literalValue(name string) (any, bool) {
	v, ok := literals()[name]
	return v, ok
}

// isReservedName reports whether name can never be an assignment target.
func isReservedName(name string) bool {
	if _, ok := literalValue(name); ok {
		return true
	}
	return name == thisName
}

// reservedWords start statements or constructs and cannot name variables.
var reservedWords = map[string]bool{
	"if":            true,
	"else":          true,
	"while":         true,
	"foreach":       true,
	"for":           true,
	"with":          true,
	"new":           true,
	"return":        true,
	"assert":        true,
	"import":        true,
	"import_static": true,
	"not":           true,
}
