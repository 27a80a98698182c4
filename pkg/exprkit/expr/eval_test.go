package expr

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
	"github.com/randalmurphal/exprkit/pkg/exprkit/scope"
)

func mustCompile(t *testing.T, src string) *Unit {
	t.Helper()
	u, err := Compile(src, nil)
	require.NoError(t, err, "compile %q", src)
	return u
}

func evalWith(t *testing.T, src string, ctx any, sc scope.Resolver) any {
	t.Helper()
	v, err := mustCompile(t, src).Evaluate(ctx, sc)
	require.NoError(t, err, "evaluate %q", src)
	return v
}

func TestEvaluate_Precedence(t *testing.T) {
	tests := []struct {
		expr string
		want any
	}{
		{"2 + 3 * 4", int64(14)},
		{"(2 + 3) * 4", int64(20)},
		{"1 < 2 && 3 > 2", true},
		{"10 - 4 - 3", int64(3)},
		{"2 ** 3 ** 2", int64(512)},
		{"7 / 2", 3.5},
		{"8 / 2", int64(4)},
		{"7 % 4", int64(3)},
		{"1 + 2 == 3", true},
		{"1 << 4", int64(16)},
		{"-16 >> 2", int64(-4)},
		{"6 & 3 | 8", int64(10)},
		{"5 ^ 1", int64(4)},
		{"'a' + 1 + 2", "a12"},
		{"1 + 2 + 'a'", "3a"},
		{"true || false && false", true},
		{"!true || true", true},
		{"-(2 + 3)", int64(-5)},
		{"~5", int64(-6)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, evalWith(t, tt.expr, nil, nil))
		})
	}
}

func TestEvaluate_ShortCircuitSkipsAssignment(t *testing.T) {
	for _, src := range []string{"false && (x = 5)", "true || (x = 5)"} {
		t.Run(src, func(t *testing.T) {
			sc := scope.New(nil)
			v := evalWith(t, src, nil, sc)
			assert.Equal(t, src == "true || (x = 5)", v)
			assert.False(t, sc.IsResolvable("x"), "skipped branch must not assign")
		})
	}

	t.Run("evaluated branch assigns", func(t *testing.T) {
		sc := scope.New(nil)
		v := evalWith(t, "true && (x = 5)", nil, sc)
		assert.Equal(t, true, v)
		got, err := sc.Get("x")
		require.NoError(t, err)
		assert.Equal(t, int64(5), got)
	})

	t.Run("skip stops at ternary", func(t *testing.T) {
		assert.Equal(t, "no", evalWith(t, "false && boom() ? 'yes' : 'no'", nil, nil))
	})
}

func TestEvaluate_DeepPath(t *testing.T) {
	ctx := map[string]any{"a": map[string]any{"b": map[string]any{"c": 5}}}
	assert.Equal(t, int64(5), evalWith(t, "a.b.c", ctx, nil))
	assert.Equal(t, int64(6), evalWith(t, "a.b.c + 1", ctx, nil))
}

func TestEvaluate_Ternary(t *testing.T) {
	tests := []struct {
		expr string
		want any
	}{
		{`1 == 1 ? "yes" : "no"`, "yes"},
		{`1 == 2 ? "yes" : "no"`, "no"},
		{`false ? 1 : true ? 2 : 3`, int64(2)},
		{`true ? false ? 1 : 2 : 3`, int64(2)},
		{`n > 0 ? n * 2 : -n`, int64(8)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, evalWith(t, tt.expr, map[string]any{"n": 4}, nil))
		})
	}
}

func TestEvaluate_Ternary_SkipsUnchosenBranch(t *testing.T) {
	sc := scope.New(nil)
	v := evalWith(t, "true ? 1 : (x = 2)", nil, sc)
	assert.Equal(t, int64(1), v)
	assert.False(t, sc.IsResolvable("x"))

	v = evalWith(t, "false ? (x = 1) : 2", nil, sc)
	assert.Equal(t, int64(2), v)
	assert.False(t, sc.IsResolvable("x"))
}

func TestEvaluate_CollectionIndex(t *testing.T) {
	ctx := map[string]any{"xs": []any{10, 20, 30}}
	assert.Equal(t, int64(20), evalWith(t, "xs[1]", ctx, nil))

	_, err := mustCompile(t, "xs[-1]").Evaluate(ctx, nil)
	require.Error(t, err)
	var idxErr *IndexError
	require.ErrorAs(t, err, &idxErr)
	assert.ErrorIs(t, err, ErrIndex)
	assert.ErrorIs(t, err, host.ErrNegativeIndex)

	_, err = mustCompile(t, "xs[3]").Evaluate(ctx, nil)
	assert.ErrorIs(t, err, host.ErrIndexOutOfRange)
}

func TestEvaluate_AssignmentCreatesBinding(t *testing.T) {
	sc := scope.New(nil)
	assert.Equal(t, int64(42), evalWith(t, "y = 42", nil, sc))
	assert.Equal(t, int64(42), evalWith(t, "y", nil, sc))

	assert.Equal(t, int64(50), evalWith(t, "y += 8", nil, sc))
	assert.Equal(t, int64(50), evalWith(t, "y++", nil, sc))
	assert.Equal(t, int64(52), evalWith(t, "++y", nil, sc))
	assert.Equal(t, int64(51), evalWith(t, "--y", nil, sc))
}

func TestEvaluate_AssignmentTargets(t *testing.T) {
	ctx := map[string]any{
		"order": map[string]any{"qty": 2},
		"xs":    []any{1, 2, 3},
		"total": 10,
	}
	sc := scope.New(nil)

	assert.Equal(t, int64(5), evalWith(t, "order.qty = 5", ctx, sc))
	assert.Equal(t, int64(5), ctx["order"].(map[string]any)["qty"])

	assert.Equal(t, int64(7), evalWith(t, "order.qty += 2", ctx, sc))
	assert.Equal(t, int64(7), ctx["order"].(map[string]any)["qty"])

	assert.Equal(t, int64(20), evalWith(t, "xs[1] = 20", ctx, sc))
	assert.Equal(t, int64(20), ctx["xs"].([]any)[1])

	// A settable context member is written in place rather than shadowed.
	assert.Equal(t, int64(11), evalWith(t, "total = total + 1", ctx, sc))
	assert.Equal(t, int64(11), ctx["total"])
	assert.False(t, sc.IsResolvable("total"))
}

func TestEvaluate_ArithmeticMismatchNearComparison(t *testing.T) {
	ctx := map[string]any{"a": true, "b": 1, "c": 5, "d": true}
	_, err := mustCompile(t, "a + b < c && d").Evaluate(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	var te *TypeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "+", te.Op)
	assert.Equal(t, "bool", te.Left)
	assert.Equal(t, 2, te.Span.Start)
	assert.Equal(t, CategoryType, Categorize(err))
}

func TestEvaluate_AssignmentWithoutScope(t *testing.T) {
	_, err := mustCompile(t, "fresh = 1").Evaluate(nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoScope)
}

func TestEvaluate_MultipleStatements(t *testing.T) {
	sc := scope.New(nil)
	v := evalWith(t, "a = 2; b = a * 3; a + b", nil, sc)
	assert.Equal(t, int64(8), v)
}

func TestEvaluate_Return(t *testing.T) {
	sc := scope.New(nil)
	v := evalWith(t, "x = 1; if (x == 1) { return 'early' } 'late'", nil, sc)
	assert.Equal(t, "early", v)
}

func TestEvaluate_ChainedComparisonRegroups(t *testing.T) {
	tests := []struct {
		x    int
		want bool
	}{
		{3, true},
		{0, false},
		{7, false},
	}
	u := mustCompile(t, "1 < x < 5")
	for _, tt := range tests {
		v, err := u.Evaluate(map[string]any{"x": tt.x}, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, v, "x=%d", tt.x)
	}
}

func TestEvaluate_TypeMismatch(t *testing.T) {
	_, err := mustCompile(t, "flag - 1").Evaluate(map[string]any{"flag": true}, nil)
	require.Error(t, err)
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "-", typeErr.Op)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Equal(t, CategoryType, Categorize(err))
}

func TestEvaluate_DivisionByZero(t *testing.T) {
	_, err := mustCompile(t, "n / 0").Evaluate(map[string]any{"n": 1}, nil)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	v, err := mustCompile(t, "n / 0.0").Evaluate(map[string]any{"n": 1}, nil)
	require.NoError(t, err)
	assert.IsType(t, float64(0), v)
}

func TestEvaluate_NumericTower(t *testing.T) {
	big1 := evalWith(t, "9223372036854775807 + 1", nil, nil)
	require.IsType(t, &big.Int{}, big1)
	assert.Equal(t, "9223372036854775808", big1.(*big.Int).String())

	assert.Equal(t, int64(5), evalWith(t, "10I - 5", nil, nil), "big results narrow back")

	dec := evalWith(t, "1.10B + 2.20B", nil, nil)
	require.IsType(t, &big.Float{}, dec)
	assert.Equal(t, "3.3", dec.(*big.Float).Text('f', 1))

	assert.Equal(t, int64(255), evalWith(t, "0xFF", nil, nil))
	assert.Equal(t, 2.5, evalWith(t, "'2' * 1.25", nil, nil))
	assert.Equal(t, "20.5", evalWith(t, "'2' + 0.5", nil, nil), "+ with a string concatenates")
}

func TestEvaluate_Idempotent(t *testing.T) {
	ctx := map[string]any{"a": map[string]any{"b": 2}, "xs": []any{1, 2, 3}}
	for _, src := range []string{"a.b * 10", "xs.size() + a.b", "($ * 2 in xs if $ > 1)", "a.b > 1 ? 'big' : 'small'"} {
		u := mustCompile(t, src)
		first, err := u.Evaluate(ctx, nil)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			again, err := u.Evaluate(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, first, again, src)
		}
	}
}

type account struct {
	Owner   string
	Balance float64
	Tags    []string
	Limits  map[string]int
}

func (a *account) Available(reserve float64) float64 { return a.Balance - reserve }

func (a *account) IsOverdrawn() bool { return a.Balance < 0 }

// corpus is evaluated both through the accessor cache and on the safe
// path; the two must always agree.
var corpus = []string{
	"2 + 3 * 4",
	"a.b.c + 1",
	"xs[1] * 2",
	"xs.size()",
	"acct.Owner",
	"acct.owner.toUpperCase()",
	"acct.available(10.5)",
	"acct.overdrawn",
	"acct.Tags[0]",
	"acct.Limits['daily']",
	"acct.Limits.daily > 100",
	"name.length() > 3 && name.startsWith('al')",
	"($ * 2 in xs if $ != 20)",
	"[1, 2, xs[0]]",
	"['k': name, 'n': 3].k",
	"Math.max(xs[0], xs[2])",
	"lang.Math.PI > 3",
	"a.?missing",
	"name == 'alice' ? acct.Balance : -1",
	"'x' + xs",
	"this.name",
}

func corpusContext() map[string]any {
	return map[string]any{
		"a":    map[string]any{"b": map[string]any{"c": 5}},
		"xs":   []any{10, 20, 30},
		"name": "alice",
		"acct": &account{Owner: "alice", Balance: 250, Tags: []string{"vip"}, Limits: map[string]int{"daily": 500}},
	}
}

func TestEvaluate_CacheTransparency(t *testing.T) {
	for _, src := range corpus {
		t.Run(src, func(t *testing.T) {
			u := mustCompile(t, src)

			safe, safeErr := u.Evaluate(corpusContext(), nil, SafeMode())
			for i := 0; i < 3; i++ {
				fast, fastErr := u.Evaluate(corpusContext(), nil)
				assert.Equal(t, safeErr == nil, fastErr == nil, "iteration %d", i)
				assert.Equal(t, safe, fast, "iteration %d", i)
			}

			cfg := DefaultConfig()
			cfg.Optimize = false
			plain, err := Compile(src, NewParserContext(cfg))
			require.NoError(t, err)
			assert.False(t, plain.Optimized())
			interpreted, interpErr := plain.Evaluate(corpusContext(), nil)
			assert.Equal(t, safeErr == nil, interpErr == nil)
			assert.Equal(t, safe, interpreted)
		})
	}
}

var assignCorpus = []struct {
	src  string
	want any
}{
	{"y = 42", int64(42)},
	{"x = 1; x += 2; x", int64(3)},
	{"n = a.b.c; n++; n", int64(6)},
	{"t = 0; foreach (v : xs) { t += v }; t", int64(60)},
	{"a.b.c = xs[2]; a.b.c + 1", int64(31)},
	{"acct.Balance += 50; acct.available(0)", 300.0},
}

func TestEvaluate_CacheTransparencyWithAssignments(t *testing.T) {
	for _, tt := range assignCorpus {
		t.Run(tt.src, func(t *testing.T) {
			u := mustCompile(t, tt.src)

			safe, err := u.Evaluate(corpusContext(), scope.New(nil), SafeMode())
			require.NoError(t, err)
			assert.Equal(t, tt.want, safe)

			for i := 0; i < 3; i++ {
				fast, err := u.Evaluate(corpusContext(), scope.New(nil))
				require.NoError(t, err, "iteration %d", i)
				assert.Equal(t, safe, fast, "iteration %d", i)
			}
		})
	}
}

func TestEvaluate_ConcurrentEvaluations(t *testing.T) {
	u := mustCompile(t, "acct.available(n) + a.b.c")

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ctx := corpusContext()
			ctx["n"] = n
			v, err := u.Evaluate(ctx, nil)
			if err != nil {
				errs <- err
				return
			}
			if v != 250-float64(n)+5 {
				errs <- errors.New("wrong result")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestEval_UsesCompileCache(t *testing.T) {
	ctx := map[string]any{"n": 2}
	v, err := Eval("n * 21", ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = Eval("n * 21", map[string]any{"n": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(21), v)

	_, err = Eval("n *", ctx, nil)
	assert.ErrorIs(t, err, ErrSyntax)
}
