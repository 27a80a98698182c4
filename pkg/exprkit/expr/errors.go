package expr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below wrap one of these so callers can use
// errors.Is without caring about positions.
var (
	// ErrSyntax marks every compilation failure.
	ErrSyntax = errors.New("syntax error")

	// ErrUnresolvableIdentifier indicates a leading name resolved nowhere.
	ErrUnresolvableIdentifier = errors.New("unresolvable identifier")

	// ErrUnresolvableProperty indicates a deep path segment failed.
	ErrUnresolvableProperty = errors.New("unresolvable property")

	// ErrTypeMismatch indicates operand kinds an operator cannot combine.
	ErrTypeMismatch = errors.New("incompatible operand types")

	// ErrDivisionByZero indicates integer division or remainder by zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrIndex indicates an invalid collection index.
	ErrIndex = errors.New("invalid index")

	// ErrAssertion indicates a failed assert statement.
	ErrAssertion = errors.New("assertion failed")

	// ErrNoScope indicates an assignment with no variable scope to write to.
	ErrNoScope = errors.New("no variable scope for assignment")

	// ErrNotAssignable indicates an assignment target that cannot be written.
	ErrNotAssignable = errors.New("not assignable")
)

// Severity grades a compile diagnostic.
type Severity int

const (
	// SeverityWarning diagnostics are retained on the unit but do not stop
	// compilation.
	SeverityWarning Severity = iota
	// SeverityFatal diagnostics abort compilation.
	SeverityFatal
)

func (s Severity) String() string {
	if s == SeverityFatal {
		return "fatal"
	}
	return "warning"
}

// Span is a half-open byte range [Start, End) into the compiled source.
type Span struct {
	Start int
	End   int
}

// Diagnostic is one compile-time message.
type Diagnostic struct {
	Severity   Severity
	Message    string
	SourceName string
	Offset     int
	Line       int
	Column     int
	Excerpt    string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.SourceName != "" {
		b.WriteString(d.SourceName)
		b.WriteByte(':')
	}
	fmt.Fprintf(&b, "%d:%d: %s: %s", d.Line, d.Column, d.Severity, d.Message)
	if d.Excerpt != "" {
		fmt.Fprintf(&b, " [near: %s]", d.Excerpt)
	}
	return b.String()
}

// ParseError reports a failed compilation with every diagnostic collected
// before it was aborted.
type ParseError struct {
	SourceName  string
	Diagnostics []Diagnostic
}

func (e *ParseError) Error() string {
	fatal := e.Fatal()
	if len(fatal) == 0 {
		return "compile failed"
	}
	msg := fatal[0].String()
	if n := len(fatal) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more error(s))", n)
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return ErrSyntax
}

// Fatal returns only the fatal diagnostics.
func (e *ParseError) Fatal() []Diagnostic {
	var out []Diagnostic
	for _, d := range e.Diagnostics {
		if d.Severity == SeverityFatal {
			out = append(out, d)
		}
	}
	return out
}

// ResolutionError reports a name or property that could not be located.
// Err is ErrUnresolvableIdentifier or ErrUnresolvableProperty; Cause is the
// underlying host error, if any.
type ResolutionError struct {
	Name  string
	Expr  string
	Span  Span
	Err   error
	Cause error
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %s", e.Err, e.Name)
	if e.Expr != "" && e.Expr != e.Name {
		fmt.Fprintf(&b, " in %q", e.Expr)
	}
	fmt.Fprintf(&b, " at offset %d", e.Span.Start)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ResolutionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// TypeError reports operands an operator cannot combine.
type TypeError struct {
	Op    string
	Left  string
	Right string
	Span  Span
	Err   error
}

func (e *TypeError) Error() string {
	if e.Right == "" {
		return fmt.Sprintf("%v: cannot apply %s to %s at offset %d", e.Err, e.Op, e.Left, e.Span.Start)
	}
	return fmt.Sprintf("%v: cannot apply %s to %s and %s at offset %d", e.Err, e.Op, e.Left, e.Right, e.Span.Start)
}

func (e *TypeError) Unwrap() error {
	return e.Err
}

// InvocationError wraps an error raised by a host method, constructor or
// interceptor, with the sub-expression that invoked it.
type InvocationError struct {
	Name string
	Expr string
	Span Span
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoking %s in %q at offset %d: %v", e.Name, e.Expr, e.Span.Start, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// IndexError reports a failed collection index.
type IndexError struct {
	Key  any
	Expr string
	Span Span
	Err  error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index [%v] in %q at offset %d: %v", e.Key, e.Expr, e.Span.Start, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// Category groups errors for logs and metrics.
type Category string

const (
	CategoryParse      Category = "parse"
	CategoryResolution Category = "resolution"
	CategoryType       Category = "type"
	CategoryInvocation Category = "invocation"
	CategoryAssertion  Category = "assertion"
	CategoryUnknown    Category = "unknown"
)

// Categorize returns the category of err, or "" for nil.
func Categorize(err error) Category {
	if err == nil {
		return ""
	}

	var (
		parseErr *ParseError
		resErr   *ResolutionError
		idxErr   *IndexError
		typeErr  *TypeError
		invErr   *InvocationError
	)
	switch {
	case errors.As(err, &parseErr):
		return CategoryParse
	case errors.As(err, &invErr):
		return CategoryInvocation
	case errors.As(err, &resErr), errors.As(err, &idxErr):
		return CategoryResolution
	case errors.As(err, &typeErr):
		return CategoryType
	case errors.Is(err, ErrAssertion):
		return CategoryAssertion
	}
	return CategoryUnknown
}
