/*
Package expr compiles and evaluates exprkit expressions.

# Overview

An expression is compiled once into a Unit: a flat sequence of classified
nodes produced by a lookahead lexer. Evaluating the unit runs the nodes
through an operator-precedence reducer against a context object and a
variable scope. Units are safe for concurrent evaluation.

	u, err := expr.Compile("order.total * (1 + rate)", nil)
	if err != nil {
	    return err
	}
	v, err := u.Evaluate(ctx, scope.New(nil))

For one-off sources, Eval compiles through a bounded cache keyed by source
text:

	v, err := expr.Eval("a.b.c + 1", ctx, nil)

# Syntax

	literals      42  3.5  10L  2.5B  99I  0xFF  'a'  "b"  true  null  empty
	collections   [1, 2, 3]  {1, 2}  ['k': v, other: 2]  [:]
	paths         a.b.c  a.?b  xs[0]  s.length()  lang.Math.max(1, 2)
	operators     + - * / % **  << >> >>>  & | ^  < > <= >= == !=
	              && || and or  contains  instanceof  ?:  ~ ! not
	assignment    x = 1  x += 2  a.b = 3  xs[0] = 4  x++  --x  int n = 5
	casts         (int) x  (lang.String) 42
	folds         (name in people if $.age > 21)
	construction  new util.List()  new app.Order('A-1', 3)
	blocks        if (c) {...} else if (c) {...} else {...}
	              while (c) {...}  foreach (x : xs) {...}  for (i = 0; i < n; i++) {...}
	              with (obj) { a = 1, b += 2 }
	statements    return x  assert x > 0  import app.Order  import_static lang.Math.*
	interception  @audit total

Statements are separated by ';'. The result of an evaluation is the value
of the last statement, or the value given to return.

# Resolution

A leading name resolves, in order, against the variable scope, the
literal and import registry (including `this` for the context object and
registered type names), members of the context object, and finally a
qualified static type such as `lang.Math`. Later path segments apply to
the current value. A segment reached through `.?` yields null instead of
failing when its receiver is null.

# Accessor Cache

Identifier paths start unresolved. The first successful safe resolution
records the navigation it performed (which member, which overload set,
which index) and publishes it to the node atomically. Later evaluations
run that plan directly. A plan whose assumptions no longer hold misses,
is demoted, and resolution resumes safely from the failed segment.
Paths through custom host.Value implementations are pinned to the safe
path. Cached and safe evaluation always agree; SafeMode and
Config.Optimize exist for differential testing.

# Errors

Compilation returns a *ParseError carrying every Diagnostic. Evaluation
returns *ResolutionError, *TypeError, *InvocationError or *IndexError,
each wrapping a sentinel (ErrUnresolvableIdentifier, ErrTypeMismatch,
ErrIndex and so on) for use with errors.Is. Categorize groups them for
logs and metrics.

# Conditions

Evaluator keeps the boolean-condition API: a compiled-source cache, custom
word operators, and truthiness of the result.

	e := expr.New(expr.WithCustomOperator("matches", matchRegexp))
	ok, err := e.Evaluate("name matches '^test.*'", vars)
*/
package expr
