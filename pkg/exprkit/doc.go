/*
Package exprkit is an embeddable expression language engine.

# Overview

The expr subpackage compiles source into units and evaluates them. This
package wraps it in an Engine that adds a per-engine compile cache,
structured logging, OpenTelemetry metrics and tracing, and loading of
settings from YAML or JSON:

	engine := exprkit.New(
	    exprkit.WithLogger(logger),
	    exprkit.WithMetrics(observability.NewMetricsRecorder()),
	)

	v, err := engine.Eval(ctx, "order.qty * order.price > 100", vars, nil)

Compile a source once and execute it many times:

	prog, err := engine.Compile(ctx, "subtotal = qty * price; subtotal * (1 + tax)")
	if err != nil {
	    return err
	}
	total, err := engine.Execute(ctx, prog, vars, scope.New(nil))

# Configuration

	c, err := config.FromFile("exprkit.yaml")
	if err != nil {
	    return err
	}
	engine, err := exprkit.FromConfig(c, types)

See ConfigFrom for the recognized keys.

# Packages

  - expr: lexer, reducer, resolver and accessor cache
  - host: host types, functions and value adapters
  - scope: variable resolver chains, in memory or SQLite backed
  - registry: generic concurrent registry
  - config: typed settings
  - observability: slog helpers, OTel metrics and spans
  - template: ${expr} and @{expr} string interpolation
  - debug: line breakpoints
*/
package exprkit
