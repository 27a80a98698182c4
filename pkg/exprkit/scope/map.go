package scope

import (
	"fmt"
	"sort"
	"sync"
)

// MapScope is an in-memory scope. The zero value is not usable; create one
// with New or FromMap.
type MapScope struct {
	mu     sync.RWMutex
	vars   map[string]any
	parent Resolver
}

// New creates an empty scope chained to parent, which may be nil.
func New(parent Resolver) *MapScope {
	return &MapScope{
		vars:   make(map[string]any),
		parent: parent,
	}
}

// FromMap creates a scope seeded with a copy of vars.
func FromMap(vars map[string]any, parent Resolver) *MapScope {
	s := New(parent)
	for k, v := range vars {
		s.vars[k] = v
	}
	return s
}

// Child returns a new empty scope whose parent is s.
func (s *MapScope) Child() *MapScope {
	return New(s)
}

// Parent returns the enclosing scope, or nil.
func (s *MapScope) Parent() Resolver {
	return s.parent
}

// IsResolvable implements Resolver.
func (s *MapScope) IsResolvable(name string) bool {
	s.mu.RLock()
	_, ok := s.vars[name]
	s.mu.RUnlock()
	if ok {
		return true
	}
	return s.parent != nil && s.parent.IsResolvable(name)
}

// Get implements Resolver.
func (s *MapScope) Get(name string) (any, error) {
	s.mu.RLock()
	v, ok := s.vars[name]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}
	if s.parent != nil {
		return s.parent.Get(name)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Set implements Resolver.
func (s *MapScope) Set(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vars[name]; !ok && s.parent != nil && s.parent.IsResolvable(name) {
		return s.parent.Set(name, value)
	}
	s.vars[name] = value
	return nil
}

// Define implements Resolver.
func (s *MapScope) Define(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
	return nil
}

// Delete removes a local binding. Parent bindings are unaffected.
func (s *MapScope) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vars, name)
}

// Names returns the locally bound names, sorted.
func (s *MapScope) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.vars))
	for k := range s.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the local bindings.
func (s *MapScope) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}
