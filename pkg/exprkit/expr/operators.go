package expr

import (
	"fmt"
	"sort"
	"sync"
)

// Op identifies an operator.
type Op uint8

const (
	OpNone Op = iota
	OpPow
	OpMul
	OpDiv
	OpMod
	OpAdd
	OpSub
	OpShl
	OpShr
	OpUShr
	OpLT
	OpGT
	OpLE
	OpGE
	OpInstanceOf
	OpContains
	OpCustom
	OpEQ
	OpNE
	OpBitAnd
	OpBitXor
	OpBitOr
	OpAnd
	OpOr
	OpTernary
	OpTernaryElse
	OpEOS
)

var opSymbols = [...]string{
	OpNone:        "",
	OpPow:         "**",
	OpMul:         "*",
	OpDiv:         "/",
	OpMod:         "%",
	OpAdd:         "+",
	OpSub:         "-",
	OpShl:         "<<",
	OpShr:         ">>",
	OpUShr:        ">>>",
	OpLT:          "<",
	OpGT:          ">",
	OpLE:          "<=",
	OpGE:          ">=",
	OpInstanceOf:  "instanceof",
	OpContains:    "contains",
	OpCustom:      "custom",
	OpEQ:          "==",
	OpNE:          "!=",
	OpBitAnd:      "&",
	OpBitXor:      "^",
	OpBitOr:       "|",
	OpAnd:         "&&",
	OpOr:          "||",
	OpTernary:     "?",
	OpTernaryElse: ":",
	OpEOS:         ";",
}

func (o Op) String() string {
	if int(o) < len(opSymbols) {
		return opSymbols[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// precedence binds higher numbers tighter.
var precedence = [...]int{
	OpPow:         13,
	OpMul:         12,
	OpDiv:         12,
	OpMod:         12,
	OpAdd:         11,
	OpSub:         11,
	OpShl:         10,
	OpShr:         10,
	OpUShr:        10,
	OpLT:          9,
	OpGT:          9,
	OpLE:          9,
	OpGE:          9,
	OpInstanceOf:  9,
	OpContains:    9,
	OpCustom:      9,
	OpEQ:          8,
	OpNE:          8,
	OpBitAnd:      7,
	OpBitXor:      6,
	OpBitOr:       5,
	OpAnd:         4,
	OpOr:          3,
	OpTernary:     2,
	OpTernaryElse: 2,
	OpEOS:         0,
}

// Precedence returns the binding strength of o.
func (o Op) Precedence() int {
	if int(o) < len(precedence) {
		return precedence[o]
	}
	return 0
}

// rightAssoc reports whether chains of o group from the right.
func (o Op) rightAssoc() bool {
	return o == OpPow
}

// isComparison reports whether o yields a boolean from an ordering or
// relational test; such results are eligible for chained regrouping.
func (o Op) isComparison() bool {
	switch o {
	case OpLT, OpGT, OpLE, OpGE:
		return true
	}
	return false
}

// isArithmetic reports whether o takes part in literal folding.
func (o Op) isArithmetic() bool {
	switch o {
	case OpPow, OpMul, OpDiv, OpMod, OpAdd, OpSub, OpShl, OpShr, OpUShr,
		OpLT, OpGT, OpLE, OpGE, OpEQ, OpNE, OpBitAnd, OpBitXor, OpBitOr:
		return true
	}
	return false
}

// compoundOps maps assignment operators to the arithmetic they apply.
var compoundOps = map[string]Op{
	"=":  OpNone,
	"+=": OpAdd,
	"-=": OpSub,
	"*=": OpMul,
	"/=": OpDiv,
	"%=": OpMod,
}

// symbolOps lists symbolic operators longest first, so lookahead always
// prefers the longest valid match.
var symbolOps = []struct {
	text string
	op   Op
}{
	{">>>", OpUShr},
	{"<<<", OpShl},
	{"**", OpPow},
	{"<<", OpShl},
	{">>", OpShr},
	{"<=", OpLE},
	{">=", OpGE},
	{"==", OpEQ},
	{"!=", OpNE},
	{"&&", OpAnd},
	{"||", OpOr},
	{"+", OpAdd},
	{"-", OpSub},
	{"*", OpMul},
	{"/", OpDiv},
	{"%", OpMod},
	{"<", OpLT},
	{">", OpGT},
	{"&", OpBitAnd},
	{"|", OpBitOr},
	{"^", OpBitXor},
	{"?", OpTernary},
	{":", OpTernaryElse},
}

var (
	wordOps     map[string]Op
	wordOpsOnce sync.Once
)

// wordOperators returns the table of operators spelled as words. It is
// built once and only read afterwards.
func wordOperators() map[string]Op {
	wordOpsOnce.Do(func() {
		wordOps = map[string]Op{
			"and":        OpAnd,
			"or":         OpOr,
			"contains":   OpContains,
			"instanceof": OpInstanceOf,
			"is":         OpInstanceOf,
		}
	})
	return wordOps
}

// BinaryOp is a custom word operator. It receives both operand values and
// returns a boolean result.
type BinaryOp func(left, right any) bool

// Compare applies a comparison operator to two values.
// Returns an error for unknown operators or incomparable operands.
func Compare(left, right any, op string) (bool, error) {
	var o Op
	for _, s := range symbolOps {
		if s.text == op {
			o = s.op
			break
		}
	}
	if o == OpNone {
		o = wordOperators()[op]
	}

	switch o {
	case OpEQ, OpNE, OpLT, OpGT, OpLE, OpGE, OpContains:
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}

	v, err := binary(o, left, right)
	if err != nil {
		return false, fmt.Errorf("%w: %s %s %s", err, describe(left), op, describe(right))
	}
	return v.(bool), nil
}

// OperatorNames returns every operator spelling the lexer accepts, sorted.
func OperatorNames() []string {
	names := make([]string, 0, len(symbolOps)+len(wordOperators()))
	for _, s := range symbolOps {
		names = append(names, s.text)
	}
	for w := range wordOperators() {
		names = append(names, w)
	}
	sort.Strings(names)
	return names
}
