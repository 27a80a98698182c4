package expr

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileWith(t *testing.T, src string, cfg Config) (*Unit, error) {
	t.Helper()
	return Compile(src, NewParserContext(cfg))
}

func TestCompile_Literals(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{"42", int64(42)},
		{"10L", int64(10)},
		{"2.5", 2.5},
		{"3f", 3.0},
		{"1e3", 1000.0},
		{".5", 0.5},
		{"0x1F", int64(31)},
		{"-0xFF", int64(-255)},
		{`'it\'s'`, "it's"},
		{`"a\nb"`, "a\nb"},
		{`'A'`, "A"},
		{"true", true},
		{"null", nil},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			u := mustCompile(t, tt.src)
			assert.True(t, u.LiteralOnly)
			v, err := u.Evaluate(nil, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestCompile_BigIntegerLiteral(t *testing.T) {
	v := evalWith(t, "99999999999999999999", nil, nil)
	require.IsType(t, &big.Int{}, v)
	assert.Equal(t, "99999999999999999999", v.(*big.Int).String())
}

func TestCompile_Comments(t *testing.T) {
	src := "1 + // first\n 2 /* inline */ * 3 # trailing"
	assert.Equal(t, int64(7), evalWith(t, src, nil, nil))

	_, err := Compile("1 /* open", nil)
	require.ErrorIs(t, err, ErrSyntax)
}

func TestCompile_CollectsAllDiagnostics(t *testing.T) {
	_, err := compileWith(t, "a +;\nb *", Config{SourceName: "rules.ex", Optimize: true})
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	fatal := pe.Fatal()
	require.Len(t, fatal, 2)
	assert.Equal(t, 1, fatal[0].Line)
	assert.Equal(t, 2, fatal[1].Line)
	assert.Equal(t, "rules.ex", fatal[1].SourceName)
	assert.Contains(t, fatal[0].Message, "incomplete expression")
	assert.Contains(t, err.Error(), "rules.ex:1:3")
	assert.Contains(t, err.Error(), "and 1 more")
}

func TestCompile_SyntaxErrors(t *testing.T) {
	tests := []struct {
		src     string
		message string
	}{
		{"'abc", "unterminated string literal"},
		{"(1 + 2", "unbalanced delimiter"},
		{"12abc", "malformed number"},
		{"1.5L", "invalid number"},
		{"xs[]", "empty index"},
		{"a.", "expected a name after '.'"},
		{"f(1,)", "empty argument"},
		{"1 ? 2", "'?' without matching ':'"},
		{"a b", "unexpected \"b\", expected an operator"},
		{"x.size() = 1", "cannot assign to a method call"},
		{"true = 1", "invalid assignment target"},
		{"this = 1", "cannot assign to this"},
		{"!", "expected an operand after prefix operator"},
		{"'\\q'", "invalid escape sequence"},
		{"else { 1 }", "else without if"},
		{"--1", "expected a variable after --"},
		{"1--1", "expected a variable after --"},
		{"2++", "expected a variable after ++"},
		{"1--x", "unexpected -- after an operand"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Compile(tt.src, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyntax)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			require.NotEmpty(t, pe.Fatal())
			assert.Contains(t, pe.Fatal()[0].Message, tt.message)
		})
	}
}

func TestCompile_Warnings(t *testing.T) {
	t.Run("statement has no effect", func(t *testing.T) {
		u, err := Compile("1 + 1; x", nil)
		require.NoError(t, err)
		require.Len(t, u.Diagnostics, 1)
		assert.Equal(t, SeverityWarning, u.Diagnostics[0].Severity)
		assert.Equal(t, "statement has no effect", u.Diagnostics[0].Message)
	})

	t.Run("constant division by zero", func(t *testing.T) {
		u, err := Compile("x + 1 / 0", nil)
		require.NoError(t, err)
		require.Len(t, u.Diagnostics, 1)
		assert.Equal(t, "division by zero", u.Diagnostics[0].Message)

		_, err = u.Evaluate(map[string]any{"x": 1}, nil)
		assert.ErrorIs(t, err, ErrDivisionByZero)
	})
}

func TestCompile_MinusOfNegativeLiteral(t *testing.T) {
	assert.Equal(t, int64(2), evalWith(t, "1 - -1", nil, nil))
	assert.Equal(t, int64(2), evalWith(t, "1- -1", nil, nil))
}

func TestCompile_Strict(t *testing.T) {
	cfg := Config{
		Strict:   true,
		Optimize: true,
		Inputs: map[string]reflect.Type{
			"x":      reflect.TypeOf(0),
			"people": reflect.TypeOf([]any{}),
		},
	}

	valid := []string{
		"x + 1",
		"int n = 5; n + x",
		"lang.Math.PI * x",
		"Math.max(x, 2)",
		"(name in people)",
		"this",
	}
	for _, src := range valid {
		t.Run(src, func(t *testing.T) {
			_, err := compileWith(t, src, cfg)
			assert.NoError(t, err)
		})
	}

	invalid := []struct {
		src     string
		message string
	}{
		{"y + 1", `undeclared variable "y"`},
		{"z = 1", `untyped assignment to undeclared variable "z"`},
		{"y++", `undeclared variable "y"`},
	}
	for _, tt := range invalid {
		t.Run(tt.src, func(t *testing.T) {
			_, err := compileWith(t, tt.src, cfg)
			require.Error(t, err)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Contains(t, pe.Fatal()[0].Message, tt.message)
		})
	}
}

func TestCompile_ConstantFolding(t *testing.T) {
	u := mustCompile(t, "2 * 3 + 4")
	assert.True(t, u.LiteralOnly)
	assert.Equal(t, reflect.TypeOf(int64(0)), u.KnownType)
	require.Len(t, u.Nodes(), 1)

	u = mustCompile(t, "x + 2 * 3")
	assert.False(t, u.LiteralOnly)
	nodes := u.Nodes()
	require.Len(t, nodes, 3, "2 * 3 folds in place")
	assert.Equal(t, int64(6), nodes[2].Value)

	u = mustCompile(t, "x * 2 + 3")
	assert.Len(t, u.Nodes(), 5, "x * 2 binds tighter than + 3")
}

func TestCompile_KnownType(t *testing.T) {
	cfg := Config{Optimize: true, Inputs: map[string]reflect.Type{"name": reflect.TypeOf("")}}
	u, err := compileWith(t, "name", cfg)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(""), u.KnownType)

	u = mustCompile(t, "(lang.String) 42")
	assert.Equal(t, reflect.TypeOf(""), u.KnownType)
	assert.Nil(t, mustCompile(t, "a + b").KnownType)
}

func TestCompile_NodeClassification(t *testing.T) {
	nodes := mustCompile(t, "a.?b.c(1)[0] + -x").Nodes()
	require.Len(t, nodes, 3)

	path := nodes[0]
	assert.Equal(t, KindIdentifier, path.Kind)
	assert.Equal(t, "a", path.Name)
	assert.True(t, path.Flags.Has(FlagDeep|FlagNullSafe|FlagCall|FlagIndex))
	assert.Equal(t, Span{0, 12}, path.Span)

	assert.Equal(t, OpAdd, nodes[1].Op)
	assert.True(t, nodes[2].Flags.Has(FlagMinus))
	assert.Equal(t, "-x", nodes[2].Text)
}

func TestCompile_DebugLineMarkers(t *testing.T) {
	u, err := compileWith(t, "a = 1;\nb = a + 1;\nb * 2", Config{Debug: true, Optimize: true})
	require.NoError(t, err)

	lines := 0
	for _, n := range u.Nodes() {
		if n.Kind == KindLineMarker {
			lines++
		}
	}
	assert.Equal(t, 3, lines)
}

func TestMatchBalanced(t *testing.T) {
	tests := []struct {
		src   string
		start int
		want  int
	}{
		{"(a)", 0, 2},
		{"f(a, (b))", 1, 8},
		{"[')']", 0, 4},
		{`{"}"}`, 0, 4},
		{"(a", 0, NoMatch},
		{"(a]", 0, NoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchBalanced(tt.src, tt.start, len(tt.src)))
		})
	}
}
