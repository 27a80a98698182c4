package expr

import "github.com/randalmurphal/exprkit/pkg/exprkit/scope"

// Interceptor wraps evaluation of the operand that follows `@name`.
//
// Before runs ahead of the wrapped node and After runs with its value. An
// error from either aborts the evaluation with an *InvocationError.
type Interceptor interface {
	Before(n *Node, ctx any, sc scope.Resolver) error
	After(n *Node, value, ctx any, sc scope.Resolver) error
}

// InterceptorFuncs adapts plain functions to Interceptor. Nil fields are
// skipped.
type InterceptorFuncs struct {
	BeforeFunc func(n *Node, ctx any, sc scope.Resolver) error
	AfterFunc  func(n *Node, value, ctx any, sc scope.Resolver) error
}

func (f InterceptorFuncs) Before(n *Node, ctx any, sc scope.Resolver) error {
	if f.BeforeFunc == nil {
		return nil
	}
	return f.BeforeFunc(n, ctx, sc)
}

func (f InterceptorFuncs) After(n *Node, value, ctx any, sc scope.Resolver) error {
	if f.AfterFunc == nil {
		return nil
	}
	return f.AfterFunc(n, value, ctx, sc)
}
