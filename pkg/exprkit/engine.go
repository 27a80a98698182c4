package exprkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/exprkit/pkg/exprkit/expr"
	"github.com/randalmurphal/exprkit/pkg/exprkit/observability"
	"github.com/randalmurphal/exprkit/pkg/exprkit/registry"
	"github.com/randalmurphal/exprkit/pkg/exprkit/scope"
	"go.opentelemetry.io/otel/attribute"
)

// Engine compiles and evaluates expressions with one configuration,
// recording logs, metrics and spans along the way.
//
// An Engine is safe for concurrent use.
type Engine struct {
	cfg       expr.Config
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	debugger  expr.Debugger
	cacheSize int
	cache     *registry.Registry[string, *Program]
}

// Program is a compiled source owned by an Engine.
type Program struct {
	// ID identifies the program in logs and spans.
	ID string

	// Unit is the compiled expression.
	Unit *expr.Unit
}

// Source returns the program's source text.
func (p *Program) Source() string { return p.Unit.Source }

// New creates an Engine.
//
// Example:
//
//	engine := exprkit.New(
//	    exprkit.WithLogger(logger),
//	    exprkit.WithMetrics(observability.NewMetricsRecorder()),
//	    exprkit.WithTracing(nil),
//	)
//	v, err := engine.Eval(ctx, "order.total * 1.2", vars, nil)
func New(opts ...Option) *Engine {
	e := &Engine{
		cfg:       expr.DefaultConfig(),
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
		cacheSize: expr.DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.cache = registry.NewBounded[string, *Program](e.cacheSize)
	return e
}

// Config returns the engine's compile configuration.
func (e *Engine) Config() expr.Config { return e.cfg }

// Compile compiles source into a new Program with a fresh ID. It does not
// consult the compile cache.
func (e *Engine) Compile(ctx context.Context, source string) (prog *Program, err error) {
	ctx, span := e.spans.StartCompileSpan(ctx, e.cfg.SourceName)
	defer func() { e.spans.EndSpanWithError(span, err) }()

	start := time.Now()
	unit, err := expr.Compile(source, expr.NewParserContext(e.cfg))
	duration := time.Since(start)
	e.metrics.RecordCompile(ctx, e.cfg.SourceName, duration, err)

	if err != nil {
		observability.LogCompileError(e.logger, e.cfg.SourceName, err, diagnosticCount(err))
		return nil, err
	}

	prog = &Program{ID: uuid.NewString(), Unit: unit}
	span.SetAttributes(attribute.String("unit.id", prog.ID))
	observability.LogCompile(e.logger, prog.ID, float64(duration.Microseconds())/1000, len(unit.Nodes()), unit.LiteralOnly)
	return prog, nil
}

// MustCompile is like Compile but panics on error.
func (e *Engine) MustCompile(source string) *Program {
	p, err := e.Compile(context.Background(), source)
	if err != nil {
		panic(fmt.Sprintf("exprkit: %v", err))
	}
	return p
}

// Execute evaluates p. vars is the context object that unqualified names
// resolve against after the scope. A nil sc gets a fresh scope so that
// assignments succeed.
func (e *Engine) Execute(ctx context.Context, p *Program, vars any, sc scope.Resolver, opts ...expr.EvalOption) (result any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if sc == nil {
		sc = scope.New(nil)
	}
	sourceName := p.Unit.SourceName

	ctx, span := e.spans.StartEvalSpan(ctx, p.ID, sourceName)
	defer func() { e.spans.EndSpanWithError(span, err) }()

	logger := observability.EnrichLogger(e.logger, p.ID, sourceName)
	evalOpts := make([]expr.EvalOption, 0, len(opts)+2)
	evalOpts = append(evalOpts, expr.WithCacheObserver(&cacheObserver{ctx: ctx, unitID: p.ID, metrics: e.metrics, logger: logger}))
	if e.debugger != nil {
		evalOpts = append(evalOpts, expr.WithDebugger(e.debugger))
	}
	evalOpts = append(evalOpts, opts...)

	start := time.Now()
	result, err = p.Unit.Evaluate(vars, sc, evalOpts...)
	duration := time.Since(start)
	durationMs := float64(duration.Microseconds()) / 1000

	category := string(expr.Categorize(err))
	e.metrics.RecordEvaluation(ctx, sourceName, duration, category)
	if err != nil {
		span.SetAttributes(attribute.String("error.category", category))
		observability.LogEvalError(logger, p.ID, err, category, durationMs)
		return nil, err
	}
	observability.LogEvalComplete(logger, p.ID, durationMs)
	return result, nil
}

// Eval compiles source through the engine's cache and evaluates it.
func (e *Engine) Eval(ctx context.Context, source string, vars any, sc scope.Resolver) (any, error) {
	p, err := e.program(ctx, source)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, p, vars, sc)
}

// EvalBool evaluates source and reports the truthiness of the result.
func (e *Engine) EvalBool(ctx context.Context, source string, vars any, sc scope.Resolver) (bool, error) {
	v, err := e.Eval(ctx, source, vars, sc)
	if err != nil {
		return false, err
	}
	return expr.IsTruthy(v), nil
}

// CacheLen returns the number of cached programs.
func (e *Engine) CacheLen() int { return e.cache.Len() }

func (e *Engine) program(ctx context.Context, source string) (*Program, error) {
	if p, ok := e.cache.Get(source); ok {
		e.metrics.RecordCacheLookup(ctx, true)
		e.spans.AddSpanEvent(ctx, "exprkit.cache.hit", attribute.Int("cache.size", e.cache.Len()))
		return p, nil
	}
	e.metrics.RecordCacheLookup(ctx, false)
	observability.LogCacheMiss(e.logger, e.cfg.SourceName, e.cache.Len())

	p, err := e.Compile(ctx, source)
	if err != nil {
		return nil, err
	}
	e.cache.Register(source, p)
	return p, nil
}

func diagnosticCount(err error) int {
	var pe *expr.ParseError
	if errors.As(err, &pe) {
		return len(pe.Diagnostics)
	}
	return 0
}
