// Package registry provides a generic thread-safe registry for values indexed by key.
//
// Registry is designed for read-heavy workloads using sync.RWMutex. It supports
// any comparable key type and any value type through Go generics. exprkit uses
// it for host type tables, interceptor tables, breakpoints and the
// source-keyed compile cache.
//
// # Basic Usage
//
//	r := registry.New[string, *host.Type]()
//	r.Register("lang.Math", mathType)
//
//	t, ok := r.Get("lang.Math")
//
// # Bounded Registries
//
// NewBounded caps the number of entries. When a new key would exceed the
// capacity, the oldest inserted key is evicted:
//
//	cache := registry.NewBounded[string, *expr.Unit](512)
//
// # Lazy Initialization
//
// GetOrCreate and GetOrCreateErr call the factory at most once per key, even
// under concurrent access. GetOrCreateErr does not store failed results:
//
//	unit, err := cache.GetOrCreateErr(source, func() (*expr.Unit, error) {
//	    return expr.Compile(source, expr.NewParserContext(cfg))
//	})
package registry
