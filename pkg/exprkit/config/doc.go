/*
Package config provides type-safe extraction of engine settings from
YAML or JSON documents.

# Overview

Config wraps a map[string]any and returns defaults for missing keys and
type mismatches, so settings files can stay sparse:

	cfg, err := config.FromFile("exprkit.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	strict := cfg.Bool("strict", false)
	size := cfg.Int("cache_size", 1024)
	imports := cfg.StringMap("imports", nil)

A typical engine file:

	strict: true
	source_name: pricing
	optimize: true
	cache_size: 512
	imports:
	  Order: app.Order
	rules:
	  discount: order.total > 100 ? 0.1 : 0

Nested mappings are read with Section.

# Loading

FromFile, FromYAML and FromJSON check the known engine keys as they load:
booleans for strict, debug, optimize, metrics and tracing, a whole number
for cache_size, and a list or alias mapping of qualified names for
imports. Every problem is reported in one error wrapping
ErrInvalidSetting. Settings may also sit under a single top-level
`exprkit:` key. FromFile names the source after the file when
source_name is absent.

# Thread Safety

Config is safe for concurrent reads. The underlying map is not modified
after creation.
*/
package config
