package exprkit

import (
	"fmt"
	"sort"

	"github.com/randalmurphal/exprkit/pkg/exprkit/config"
	"github.com/randalmurphal/exprkit/pkg/exprkit/expr"
	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
	"github.com/randalmurphal/exprkit/pkg/exprkit/observability"
)

// ConfigFrom builds a compile configuration from settings.
//
// Recognized keys:
//   - strict, debug, optimize (bool; optimize defaults to true)
//   - source_name (string)
//   - imports: a list of qualified type names, each bound under its short
//     name, or a mapping of alias to qualified type name
//
// Type names resolve against types, or host.DefaultTypes() when nil.
func ConfigFrom(c config.Config, types *host.Types) (expr.Config, error) {
	if types == nil {
		types = host.DefaultTypes()
	}
	cfg := expr.DefaultConfig()
	cfg.Types = types
	cfg.Strict = c.Bool("strict", false)
	cfg.Debug = c.Bool("debug", false)
	cfg.Optimize = c.Bool("optimize", true)
	cfg.SourceName = c.String("source_name", "")

	aliases := c.StringMap("imports", nil)
	if aliases == nil && c.Has("imports") {
		names := c.StringSlice("imports", nil)
		if names == nil {
			return expr.Config{}, fmt.Errorf("imports: expected a list or mapping of type names")
		}
		aliases = make(map[string]string, len(names))
		for _, name := range names {
			t, ok := types.Qualified(name)
			if !ok {
				return expr.Config{}, fmt.Errorf("imports: unknown type %q", name)
			}
			aliases[t.Short()] = name
		}
	}
	if len(aliases) == 0 {
		return cfg, nil
	}

	keys := make([]string, 0, len(aliases))
	for alias := range aliases {
		keys = append(keys, alias)
	}
	sort.Strings(keys)

	cfg.Imports = make(map[string]any, len(aliases))
	for _, alias := range keys {
		t, ok := types.Qualified(aliases[alias])
		if !ok {
			return expr.Config{}, fmt.Errorf("imports: unknown type %q for %q", aliases[alias], alias)
		}
		cfg.Imports[alias] = t
	}
	return cfg, nil
}

// FromConfig creates an Engine from settings. Besides the ConfigFrom keys
// it reads cache_size, and enables OTel metrics and tracing when metrics
// or tracing is true. opts apply after the settings.
func FromConfig(c config.Config, types *host.Types, opts ...Option) (*Engine, error) {
	cfg, err := ConfigFrom(c, types)
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithConfig(cfg),
		WithCacheSize(c.Int("cache_size", expr.DefaultCacheSize)),
	}
	if c.Bool("metrics", false) {
		base = append(base, WithMetrics(observability.NewMetricsRecorder()))
	}
	if c.Bool("tracing", false) {
		base = append(base, WithTracing(nil))
	}
	return New(append(base, opts...)...), nil
}
