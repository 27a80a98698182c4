// Package scope provides the variable resolver chains expressions read and
// assign through.
//
// A chain is a linked list of scopes, innermost first. Reads search the chain
// outward. Assignments update the nearest existing binding, or create one in
// the innermost scope when the name is bound nowhere.
package scope

import "errors"

// Resolver is one link in a variable resolver chain.
// Implementations must be safe for concurrent use.
type Resolver interface {
	// IsResolvable reports whether name is bound here or in any parent.
	IsResolvable(name string) bool

	// Get returns the value bound to name, searching parents.
	// Returns an error wrapping ErrNotFound if name is unbound.
	Get(name string) (any, error)

	// Set updates the nearest existing binding of name, or binds it in
	// this scope if no scope in the chain has it.
	Set(name string, value any) error

	// Define binds name in this scope, shadowing any parent binding.
	Define(name string, value any) error
}

// Sentinel errors for scope operations.
var (
	// ErrNotFound indicates a name is not bound anywhere in the chain.
	ErrNotFound = errors.New("variable not found")

	// ErrClosed indicates the scope's backing store has been closed.
	ErrClosed = errors.New("scope closed")
)
