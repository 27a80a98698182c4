package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/exprkit/pkg/exprkit/expr"
	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
	"github.com/randalmurphal/exprkit/pkg/exprkit/registry"
	"github.com/randalmurphal/exprkit/pkg/exprkit/scope"
)

// ErrUnterminated indicates a placeholder whose opening brace is never
// closed.
var ErrUnterminated = errors.New("unterminated placeholder")

// Expander expands ${expr} and @{expr} placeholders in strings by
// evaluating each expression.
//
// Create with NewExpander() and configure with Option functions.
// Expander is safe for concurrent use after construction.
type Expander struct {
	missingAction MissingAction
	dollarStyle   bool
	atStyle       bool
	cfg           expr.Config
	cache         *registry.Registry[string, *expr.Unit]
}

// NewExpander creates a new Expander with the given options.
//
// Default configuration:
//   - MissingAction: MissingKeep (keep placeholders as-is)
//   - DollarStyle: enabled (${expr})
//   - AtStyle: enabled (@{expr})
//   - Config: expr.DefaultConfig()
func NewExpander(opts ...Option) *Expander {
	e := &Expander{
		missingAction: MissingKeep,
		dollarStyle:   true,
		atStyle:       true,
		cfg:           expr.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = registry.NewBounded[string, *expr.Unit](expr.DefaultCacheSize)
	}
	return e
}

// Expand evaluates every placeholder in s with vars as the context object
// and substitutes the formatted result.
//
// Placeholders of one call share a variable scope, so an assignment in an
// earlier placeholder is visible to later ones. A backslash before the
// sigil emits the placeholder text literally.
//
// Example:
//
//	exp := NewExpander()
//	result, err := exp.Expand("Total: @{order.qty * order.price}", vars)
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	var (
		b       strings.Builder
		missing []string
		sc      = scope.New(nil)
	)
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+2 < len(s) && e.isSigil(s[i+1]) && s[i+2] == '{' {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		if !e.isSigil(c) || i+1 >= len(s) || s[i+1] != '{' {
			b.WriteByte(c)
			continue
		}

		end := expr.MatchBalanced(s, i+1, len(s))
		if end == expr.NoMatch {
			return "", fmt.Errorf("%w at offset %d", ErrUnterminated, i)
		}
		placeholder := s[i : end+1]
		source := strings.TrimSpace(s[i+2 : end])
		i = end

		v, err := e.eval(source, vars, sc)
		if err != nil {
			if !errors.Is(err, expr.ErrUnresolvableIdentifier) {
				return "", fmt.Errorf("expand %s: %w", placeholder, err)
			}
			switch e.missingAction {
			case MissingEmpty:
			case MissingError:
				missing = append(missing, source)
				b.WriteString(placeholder)
			default:
				b.WriteString(placeholder)
			}
			continue
		}
		b.WriteString(host.Format(v))
	}

	if len(missing) > 0 {
		return b.String(), &UndefinedVariableError{Names: missing}
	}
	return b.String(), nil
}

func (e *Expander) isSigil(c byte) bool {
	return (c == '$' && e.dollarStyle) || (c == '@' && e.atStyle)
}

func (e *Expander) eval(source string, vars map[string]any, sc scope.Resolver) (any, error) {
	if source == "" {
		return "", nil
	}
	u, err := e.cache.GetOrCreateErr(source, func() (*expr.Unit, error) {
		return expr.Compile(source, expr.NewParserContext(e.cfg))
	})
	if err != nil {
		return nil, err
	}
	var ctx any
	if vars != nil {
		ctx = vars
	}
	return u.Evaluate(ctx, sc)
}

// MustExpand expands placeholders in s and panics on error.
func (e *Expander) MustExpand(s string, vars map[string]any) string {
	result, err := e.Expand(s, vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return result
}

// ExpandAll expands placeholders in all strings.
// On error, returns nil and the first error.
func (e *Expander) ExpandAll(ss []string, vars map[string]any) ([]string, error) {
	if ss == nil {
		return nil, nil
	}

	results := make([]string, len(ss))
	for i, s := range ss {
		expanded, err := e.Expand(s, vars)
		if err != nil {
			return nil, err
		}
		results[i] = expanded
	}
	return results, nil
}

// ExpandMap expands placeholders in all string values of a map
// recursively. Non-string values are copied as-is.
// On error, returns nil and the first error.
func (e *Expander) ExpandMap(m map[string]any, vars map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}

	result := make(map[string]any, len(m))
	for k, v := range m {
		expanded, err := e.expandValue(v, vars)
		if err != nil {
			return nil, err
		}
		result[k] = expanded
	}
	return result, nil
}

func (e *Expander) expandValue(v any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return e.Expand(val, vars)
	case map[string]any:
		return e.ExpandMap(val, vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			expanded, err := e.expandValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

// UndefinedVariableError is returned when MissingError is set and one or
// more placeholders reference unresolvable names.
type UndefinedVariableError struct {
	// Names holds the source of each failing placeholder.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// Unwrap lets errors.Is match expr.ErrUnresolvableIdentifier.
func (e *UndefinedVariableError) Unwrap() error {
	return expr.ErrUnresolvableIdentifier
}

var defaultExpander = NewExpander()

// Expand expands placeholders in s using the default expander.
// Unresolvable placeholders stay as-is. On any other error the input is
// returned unchanged.
func Expand(s string, vars map[string]any) string {
	result, err := defaultExpander.Expand(s, vars)
	if err != nil {
		return s
	}
	return result
}
