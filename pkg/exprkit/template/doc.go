/*
Package template interpolates expression results into strings.

# Overview

A placeholder is ${expr} or @{expr}. Each placeholder's expression is
compiled once, cached, and evaluated with the variable map as the context
object:

	vars := map[string]any{"order": map[string]any{"qty": 3, "price": 2.5}}
	s := template.Expand("Total: @{order.qty * order.price}", vars)
	// s: "Total: 7.5"

Braces inside string literals and nested collections are matched, so
@{['a': 1].a} and ${"}"} work as expected.

# Missing Variables

By default, a placeholder referencing a name that resolves nowhere is kept
as-is. Configure behavior with options:

	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	_, err := exp.Expand("Hello ${missing}", nil)
	// err: "undefined variable: missing"

Other evaluation errors, such as a type mismatch, are always returned.

# Escaping

A backslash before the sigil emits the placeholder literally:

	template.Expand(`cost \${x}`, nil) // "cost ${x}"

# Thread Safety

Expander is safe for concurrent use after construction. Package-level
functions use a shared default expander.
*/
package template
