package template

import (
	"github.com/randalmurphal/exprkit/pkg/exprkit/expr"
	"github.com/randalmurphal/exprkit/pkg/exprkit/registry"
)

// MissingAction specifies how to handle placeholders whose expression
// references a name that resolves nowhere.
type MissingAction int

const (
	// MissingKeep keeps the placeholder as-is.
	// This is the default behavior.
	MissingKeep MissingAction = iota

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty

	// MissingError returns an *UndefinedVariableError.
	MissingError
)

// Option configures an Expander.
type Option func(*Expander)

// WithMissingAction sets how unresolvable placeholders are handled.
//
// Default: MissingKeep (keep placeholder as-is)
//
// Example:
//
//	exp := NewExpander(WithMissingAction(MissingError))
//	_, err := exp.Expand("${missing}", nil)
//	// err: "undefined variable: missing"
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) {
		e.missingAction = action
	}
}

// WithDollarStyle enables or disables ${expr} placeholders.
//
// Default: true (enabled)
func WithDollarStyle(enabled bool) Option {
	return func(e *Expander) {
		e.dollarStyle = enabled
	}
}

// WithAtStyle enables or disables @{expr} placeholders.
//
// Default: true (enabled)
func WithAtStyle(enabled bool) Option {
	return func(e *Expander) {
		e.atStyle = enabled
	}
}

// WithConfig sets the compile configuration used for placeholder
// expressions, for example to add imports or interceptors.
func WithConfig(cfg expr.Config) Option {
	return func(e *Expander) {
		e.cfg = cfg
	}
}

// WithCacheSize bounds the number of compiled placeholder expressions the
// expander keeps.
func WithCacheSize(n int) Option {
	return func(e *Expander) {
		e.cache = registry.NewBounded[string, *expr.Unit](n)
	}
}
