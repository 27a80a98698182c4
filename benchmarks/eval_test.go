package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/exprkit/pkg/exprkit"
	"github.com/randalmurphal/exprkit/pkg/exprkit/expr"
	"github.com/randalmurphal/exprkit/pkg/exprkit/scope"
)

// Account is a host value with fields and methods.
type Account struct {
	Owner   string
	Balance float64
	Limit   float64
}

// Available is called from expressions as account.available().
func (a *Account) Available() float64 {
	return a.Balance + a.Limit
}

var deepVars = map[string]any{
	"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": 42}}},
}

var accountVars = map[string]any{
	"account": &Account{Owner: "ana", Balance: 120, Limit: 50},
	"amount":  90,
}

func mustCompile(b *testing.B, src string, optimize bool) *expr.Unit {
	b.Helper()
	cfg := expr.DefaultConfig()
	cfg.Optimize = optimize
	u, err := expr.Compile(src, expr.NewParserContext(cfg))
	if err != nil {
		b.Fatal(err)
	}
	return u
}

func benchUnit(b *testing.B, src string, vars any, opts ...expr.EvalOption) {
	u := mustCompile(b, src, true)
	sc := scope.New(nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := u.Evaluate(vars, sc, opts...); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDeepPath_Optimized reads a four-level map path through the
// accessor cache.
func BenchmarkDeepPath_Optimized(b *testing.B) {
	benchUnit(b, "a.b.c.d + 1", deepVars)
}

// BenchmarkDeepPath_Safe reads the same path resolving every segment.
func BenchmarkDeepPath_Safe(b *testing.B) {
	benchUnit(b, "a.b.c.d + 1", deepVars, expr.SafeMode())
}

// BenchmarkMethodCall_Optimized calls a struct method through the cache.
func BenchmarkMethodCall_Optimized(b *testing.B) {
	benchUnit(b, "account.available() >= amount && account.Owner == 'ana'", accountVars)
}

// BenchmarkMethodCall_Safe calls the method with overload selection each time.
func BenchmarkMethodCall_Safe(b *testing.B) {
	benchUnit(b, "account.available() >= amount && account.Owner == 'ana'", accountVars, expr.SafeMode())
}

// BenchmarkArithmetic evaluates operator precedence with no paths.
func BenchmarkArithmetic(b *testing.B) {
	benchUnit(b, "x * 2 + y / 4 - (x % 3) ** 2", map[string]any{"x": 17, "y": 8})
}

// BenchmarkFold filters and projects a list.
func BenchmarkFold(b *testing.B) {
	people := make([]any, 100)
	for i := range people {
		people[i] = map[string]any{"name": "p", "age": i}
	}
	benchUnit(b, "(name in people if $.age > 50)", map[string]any{"people": people})
}

// BenchmarkCompile measures compilation of a multi-statement source.
func BenchmarkCompile(b *testing.B) {
	src := "total = 0; foreach (item : items) { total += item.qty * item.price }; total > 100 ? total * 0.9 : total"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := expr.Compile(src, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEngineEval measures the engine's cached compile plus
// evaluation with no-op observability.
func BenchmarkEngineEval(b *testing.B) {
	engine := exprkit.New()
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Eval(ctx, "a.b.c.d * 2", deepVars, nil); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDeepPath_Parallel exercises the accessor cache from many
// goroutines.
func BenchmarkDeepPath_Parallel(b *testing.B) {
	u := mustCompile(b, "a.b.c.d + 1", true)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		sc := scope.New(nil)
		for pb.Next() {
			if _, err := u.Evaluate(deepVars, sc); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
