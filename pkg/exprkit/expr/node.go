package expr

import (
	"fmt"
	"sync/atomic"

	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
)

// Kind is the authoritative evaluation dispatch of a node.
type Kind uint8

const (
	KindLiteral Kind = iota
	KindIdentifier
	KindOperator
	KindSubstatement
	KindCollection
	KindFold
	KindNew
	KindCast
	KindAssign
	KindIncDec
	KindIf
	KindWhile
	KindForeach
	KindFor
	KindWith
	KindReturn
	KindAssert
	KindIntercept
	KindLineMarker
)

var kindNames = [...]string{
	KindLiteral:      "literal",
	KindIdentifier:   "identifier",
	KindOperator:     "operator",
	KindSubstatement: "substatement",
	KindCollection:   "collection",
	KindFold:         "fold",
	KindNew:          "new",
	KindCast:         "cast",
	KindAssign:       "assign",
	KindIncDec:       "incdec",
	KindIf:           "if",
	KindWhile:        "while",
	KindForeach:      "foreach",
	KindFor:          "for",
	KindWith:         "with",
	KindReturn:       "return",
	KindAssert:       "assert",
	KindIntercept:    "intercept",
	KindLineMarker:   "line",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// isBlock reports whether nodes of this kind are complete statements that
// the lexer terminates with an implicit end of statement.
func (k Kind) isBlock() bool {
	switch k {
	case KindIf, KindWhile, KindForeach, KindFor, KindWith:
		return true
	}
	return false
}

// Flags are structural properties fixed when a node is constructed.
type Flags uint16

const (
	FlagDeep     Flags = 1 << iota // path has dotted segments
	FlagIndex                      // path has an index segment
	FlagCall                       // path has a method call segment
	FlagNegate                     // prefix ! or not
	FlagInvert                     // prefix ~
	FlagMinus                      // prefix unary -
	FlagNumeric                    // numeric literal
	FlagAssign                     // assignment or increment
	FlagNew                        // object construction
	FlagFold                       // fold or projection
	FlagDiscard                    // value never becomes a statement result
	FlagNullSafe                   // path contains a .? segment
	FlagDeclare                    // typed declaration
	FlagPrefix                     // prefix ++ or --
)

// Has reports whether all of f2 are set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// Node is one classified unit of compiled source.
//
// A node is immutable once the lexer returns it, except for its accessor
// slot, which moves between unresolved and resolved states atomically as
// evaluations promote and demote cached accessors.
type Node struct {
	Kind  Kind
	Flags Flags
	Span  Span
	Text  string
	Line  int

	// Value is the payload of literal nodes.
	Value any

	// Op is the operator of operator nodes and the compound operator of
	// assignments (OpNone for plain `=`).
	Op Op

	// Name is the custom operator, interceptor or declared variable name.
	Name string

	// path navigates off the value the node produces; target is where an
	// assignment or increment writes.
	path   *path
	target *path
	sub    *Unit
	inner  *Node
	typ    *host.Type
	args   []*Unit
	coll   *collectionSpec
	fold   *foldSpec
	block  *blockSpec
	with   []withAssign
	icept  Interceptor
	custom BinaryOp

	slot atomic.Pointer[slot]
}

func (n *Node) String() string {
	switch n.Kind {
	case KindLiteral:
		return fmt.Sprintf("literal(%s)", host.Format(n.Value))
	case KindOperator:
		return fmt.Sprintf("operator(%s)", n.Op)
	}
	return fmt.Sprintf("%s(%s)", n.Kind, n.Text)
}

// IsOperand reports whether the node produces a value in operand position.
func (n *Node) IsOperand() bool {
	return n.Kind != KindOperator && n.Kind != KindLineMarker
}

// Cached reports whether the node currently holds a promoted accessor.
func (n *Node) Cached() bool {
	s := n.slot.Load()
	return s != nil && s.acc != nil
}

// Uncacheable reports whether the node has been pinned to the safe path.
func (n *Node) Uncacheable() bool {
	s := n.slot.Load()
	return s != nil && s.dynamic
}

// collectionSpec describes an inline list, array or map literal.
type collectionSpec struct {
	isMap bool
	keys  []*Unit
	elems []*Unit
}

// foldSpec describes `(expr in collection [if filter])`.
type foldSpec struct {
	expr   *Unit
	source *Unit
	filter *Unit
}

// blockSpec describes control-flow blocks.
type blockSpec struct {
	conds  []*Unit // if / else if conditions, while condition
	bodies []*Unit // one per condition
	orElse *Unit

	// foreach
	varName string
	varType *host.Type
	source  *Unit

	// C-style for
	init *Unit
	step *Unit
}

// withAssign is one `name op= expr` entry of a with block.
type withAssign struct {
	name string
	op   Op
	rhs  *Unit
	span Span
}
