package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSetting is returned when an engine setting has the wrong shape.
var ErrInvalidSetting = errors.New("invalid setting")

// Root is the key under which engine settings may be nested inside a
// larger application file. A document whose only top-level key is Root
// is unwrapped on load.
const Root = "exprkit"

// Setting kinds checked at load time. Keys not listed here are free-form
// sections such as `rules` or `messages`.
var settingKinds = map[string]string{
	"strict":      "bool",
	"debug":       "bool",
	"optimize":    "bool",
	"metrics":     "bool",
	"tracing":     "bool",
	"source_name": "string",
	"cache_size":  "count",
	"imports":     "imports",
}

// FromFile loads engine settings from a .yaml, .yml or .json file. When
// the file does not set source_name, the file's base name without its
// extension is used, so diagnostics point back at the settings file.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		cfg, err = FromYAML(data)
	case ".json":
		cfg, err = FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	if !cfg.Has("source_name") {
		cfg.data["source_name"] = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return cfg, nil
}

// FromYAML parses and validates YAML engine settings.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return load(m)
}

// FromJSON parses and validates JSON engine settings. Numbers decode as
// float64; Int reads integral values back.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return load(m)
}

func load(m map[string]any) (Config, error) {
	if len(m) == 1 {
		if inner, ok := m[Root].(map[string]any); ok {
			m = inner
		}
	}
	if err := Validate(New(m)); err != nil {
		return Config{}, err
	}
	return New(m), nil
}

// Validate checks the shape of the known engine settings in c. It reports
// every offending key in one error wrapping ErrInvalidSetting.
func Validate(c Config) error {
	var problems []string
	for _, key := range c.Keys() {
		kind, ok := settingKinds[key]
		if !ok {
			continue
		}
		if msg := checkKind(kind, c.data[key]); msg != "" {
			problems = append(problems, key+": "+msg)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidSetting, strings.Join(problems, "; "))
}

func checkKind(kind string, v any) string {
	switch kind {
	case "bool":
		if _, ok := v.(bool); !ok {
			return fmt.Sprintf("expected true or false, got %s", shape(v))
		}
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Sprintf("expected a string, got %s", shape(v))
		}
	case "count":
		switch n := v.(type) {
		case int:
			if n < 0 {
				return "must not be negative"
			}
		case float64:
			if n < 0 || n != math.Trunc(n) {
				return "expected a non-negative whole number"
			}
		default:
			return fmt.Sprintf("expected a number, got %s", shape(v))
		}
	case "imports":
		return checkImports(v)
	}
	return ""
}

// checkImports accepts a list of qualified type names or a mapping of
// alias to qualified type name.
func checkImports(v any) string {
	switch imports := v.(type) {
	case []any:
		for i, item := range imports {
			if s, ok := item.(string); !ok || s == "" {
				return fmt.Sprintf("entry %d: expected a qualified type name", i)
			}
		}
	case map[string]any:
		for _, alias := range slices.Sorted(maps.Keys(imports)) {
			if s, ok := imports[alias].(string); !ok || s == "" {
				return fmt.Sprintf("%s: expected a qualified type name", alias)
			}
		}
	default:
		return fmt.Sprintf("expected a list or mapping, got %s", shape(v))
	}
	return ""
}

func shape(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "mapping"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, float64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
