package exprkit

import (
	"log/slog"

	"github.com/randalmurphal/exprkit/pkg/exprkit/expr"
	"github.com/randalmurphal/exprkit/pkg/exprkit/observability"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics{}
//
// Example:
//
//	engine := exprkit.New(exprkit.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracing enables exprkit.compile and exprkit.eval spans through the
// given span manager. Passing nil uses observability.NewSpanManager().
func WithTracing(sm observability.SpanManager) Option {
	return func(e *Engine) {
		if sm == nil {
			sm = observability.NewSpanManager()
		}
		e.spans = sm
	}
}

// WithConfig sets the compile configuration for every source the engine
// compiles.
// Default: expr.DefaultConfig()
func WithConfig(cfg expr.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithCacheSize bounds the engine's compile cache. Zero or less means
// unbounded.
// Default: expr.DefaultCacheSize
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithDebugger attaches d to every evaluation. It only receives callbacks
// for sources compiled with Config.Debug.
func WithDebugger(d expr.Debugger) Option {
	return func(e *Engine) {
		e.debugger = d
	}
}
