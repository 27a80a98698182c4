package expr

import (
	"errors"
	"strings"

	"github.com/randalmurphal/exprkit/pkg/exprkit/registry"
	"github.com/randalmurphal/exprkit/pkg/exprkit/scope"
)

// Frame describes the evaluation position reported to a Debugger.
type Frame struct {
	SourceName string
	Line       int
	Context    any
	Scope      scope.Resolver
}

// Debugger receives a callback at every line marker of a unit compiled
// with Config.Debug. Markers sit between top-level statements only.
type Debugger interface {
	OnLine(f Frame)
}

// CacheObserver is notified when a node's accessor is promoted into, or
// demoted from, the cache.
type CacheObserver interface {
	OnPromote(n *Node)
	OnDemote(n *Node)
}

// EvalOption configures a single evaluation.
type EvalOption func(*evalOptions)

type evalOptions struct {
	debugger Debugger
	observer CacheObserver
	safe     bool
	env      *environment
}

// WithDebugger delivers line markers to d.
func WithDebugger(d Debugger) EvalOption {
	return func(o *evalOptions) {
		o.debugger = d
	}
}

// WithCacheObserver reports accessor promotions and demotions to obs.
func WithCacheObserver(obs CacheObserver) EvalOption {
	return func(o *evalOptions) {
		o.observer = obs
	}
}

// SafeMode bypasses the accessor cache for this evaluation. Results are
// identical; only speed differs.
func SafeMode() EvalOption {
	return func(o *evalOptions) {
		o.safe = true
	}
}

// state is the per-evaluation context threaded through the reducer.
type state struct {
	ctx  any
	sc   scope.Resolver
	opts *evalOptions
}

func newState(ctx any, sc scope.Resolver, opts *evalOptions) *state {
	return &state{ctx: ctx, sc: sc, opts: opts}
}

// with returns a copy of st bound to another context and scope.
func (st *state) with(ctx any, sc scope.Resolver) *state {
	return &state{ctx: ctx, sc: sc, opts: st.opts}
}

// returnSignal unwinds nested units when a return statement executes.
type returnSignal struct {
	value any
}

func (r *returnSignal) Error() string {
	return "return outside of an evaluation"
}

// Evaluate runs the unit against a context object and variable scope.
// Either may be nil. The result is the value of the last statement, or
// the value given to return.
func (u *Unit) Evaluate(ctx any, sc scope.Resolver, opts ...EvalOption) (any, error) {
	o := &evalOptions{}
	for _, opt := range opts {
		opt(o)
	}
	o.env = u.env
	if !u.env.optimize {
		o.safe = true
	}
	v, err := u.exec(newState(ctx, sc, o))
	var ret *returnSignal
	if errors.As(err, &ret) {
		return ret.value, nil
	}
	return v, err
}

// DefaultCacheSize bounds the compile cache used by Eval.
const DefaultCacheSize = 1024

var compileCache = registry.NewBounded[string, *Unit](DefaultCacheSize)

// Eval compiles and evaluates source in one call. Compiled units are
// cached by source text, so repeated sources compile once.
func Eval(source string, ctx any, sc scope.Resolver) (any, error) {
	u, err := compileCache.GetOrCreateErr(source, func() (*Unit, error) {
		return Compile(source, nil)
	})
	if err != nil {
		return nil, err
	}
	return u.Evaluate(ctx, sc)
}

// Evaluator evaluates boolean conditions with optional custom operators.
type Evaluator struct {
	customOps map[string]BinaryOp
	cache     *registry.Registry[string, *Unit]
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCustomOperator registers a custom binary operator.
// The operator name should not conflict with built-in operators.
func WithCustomOperator(name string, fn BinaryOp) Option {
	return func(e *Evaluator) {
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// WithCacheSize bounds the evaluator's compile cache.
func WithCacheSize(n int) Option {
	return func(e *Evaluator) {
		e.cache = registry.NewBounded[string, *Unit](n)
	}
}

// New creates a new Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = registry.NewBounded[string, *Unit](DefaultCacheSize)
	}
	return e
}

// Evaluate evaluates a condition with vars as its context and returns the
// truthiness of the result. An empty condition is false.
func (e *Evaluator) Evaluate(expr string, vars map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, nil
	}
	u, err := e.cache.GetOrCreateErr(expr, func() (*Unit, error) {
		cfg := DefaultConfig()
		cfg.Operators = e.customOps
		return Compile(expr, NewParserContext(cfg))
	})
	if err != nil {
		return false, err
	}
	v, err := u.Evaluate(vars, scope.New(nil))
	if err != nil {
		return false, err
	}
	return IsTruthy(v), nil
}
