// Package debug provides line breakpoints for expressions compiled with
// expr.Config.Debug.
//
// Breakpoints implements expr.Debugger. Pass it to an evaluation with
// expr.WithDebugger and it calls the handler registered for each
// (source, line) the evaluation reaches:
//
//	bp := debug.New()
//	bp.Set("pricing", 2, func(f expr.Frame) {
//	    v, _ := f.Scope.Get("subtotal")
//	    log.Printf("subtotal=%v", v)
//	})
//	u.Evaluate(ctx, sc, expr.WithDebugger(bp))
package debug

import (
	"slices"
	"sync/atomic"

	"github.com/randalmurphal/exprkit/pkg/exprkit/expr"
	"github.com/randalmurphal/exprkit/pkg/exprkit/registry"
)

// Handler is called when an evaluation reaches a breakpoint.
type Handler func(f expr.Frame)

// Location identifies a line of a named source.
type Location struct {
	Source string
	Line   int
}

type breakpoint struct {
	handler Handler
	hits    atomic.Int64
}

// Breakpoints is a registry of line handlers. It is safe for concurrent
// use, including registering breakpoints while evaluations run.
type Breakpoints struct {
	points *registry.Registry[Location, *breakpoint]
	onAny  Handler
}

var _ expr.Debugger = (*Breakpoints)(nil)

// Option configures Breakpoints.
type Option func(*Breakpoints)

// WithTrace installs a handler called at every line marker, before any
// breakpoint handler for that line.
func WithTrace(h Handler) Option {
	return func(b *Breakpoints) {
		b.onAny = h
	}
}

// New creates an empty breakpoint registry.
func New(opts ...Option) *Breakpoints {
	b := &Breakpoints{points: registry.New[Location, *breakpoint]()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Set registers h at (source, line), replacing any existing handler and
// resetting its hit count.
func (b *Breakpoints) Set(source string, line int, h Handler) {
	b.points.Register(Location{source, line}, &breakpoint{handler: h})
}

// Clear removes the breakpoint at (source, line).
func (b *Breakpoints) Clear(source string, line int) {
	b.points.Delete(Location{source, line})
}

// Has reports whether a breakpoint is set at (source, line).
func (b *Breakpoints) Has(source string, line int) bool {
	return b.points.Has(Location{source, line})
}

// Hits returns how many times the breakpoint at (source, line) fired.
func (b *Breakpoints) Hits(source string, line int) int64 {
	bp, ok := b.points.Get(Location{source, line})
	if !ok {
		return 0
	}
	return bp.hits.Load()
}

// Lines returns the lines of source that carry a breakpoint, ascending.
func (b *Breakpoints) Lines(source string) []int {
	var lines []int
	b.points.Range(func(loc Location, _ *breakpoint) bool {
		if loc.Source == source {
			lines = append(lines, loc.Line)
		}
		return true
	})
	slices.Sort(lines)
	return lines
}

// OnLine implements expr.Debugger.
func (b *Breakpoints) OnLine(f expr.Frame) {
	if b.onAny != nil {
		b.onAny(f)
	}
	bp, ok := b.points.Get(Location{f.SourceName, f.Line})
	if !ok {
		return
	}
	bp.hits.Add(1)
	if bp.handler != nil {
		bp.handler(f)
	}
}
