package exprkit

import (
	"context"
	"reflect"
	"testing"

	"github.com/randalmurphal/exprkit/pkg/exprkit/config"
	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invoice struct {
	Lines int64
}

func invoiceTypes() *host.Types {
	types := host.DefaultTypes().Clone()
	types.Register(&host.Type{
		Name:   "billing.Invoice",
		GoType: reflect.TypeOf(&invoice{}),
		Constructors: []*host.Func{
			host.MustFunc("Invoice", func(lines int64) *invoice { return &invoice{Lines: lines} }),
		},
	})
	return types
}

func TestConfigFrom(t *testing.T) {
	c, err := config.FromYAML([]byte(`
strict: true
debug: true
optimize: false
source_name: billing
`))
	require.NoError(t, err)

	cfg, err := ConfigFrom(c, nil)
	require.NoError(t, err)
	assert.True(t, cfg.Strict)
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.Optimize)
	assert.Equal(t, "billing", cfg.SourceName)
	assert.NotNil(t, cfg.Types)
	assert.Empty(t, cfg.Imports)
}

func TestConfigFrom_Defaults(t *testing.T) {
	cfg, err := ConfigFrom(config.New(nil), nil)
	require.NoError(t, err)
	assert.True(t, cfg.Optimize)
	assert.False(t, cfg.Strict)
}

func TestConfigFrom_Imports(t *testing.T) {
	types := invoiceTypes()

	tests := []struct {
		name  string
		yaml  string
		alias string
	}{
		{"list", "imports: [billing.Invoice]", "Invoice"},
		{"mapping", "imports: {Inv: billing.Invoice}", "Inv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := config.FromYAML([]byte(tt.yaml))
			require.NoError(t, err)

			cfg, err := ConfigFrom(c, types)
			require.NoError(t, err)
			require.Contains(t, cfg.Imports, tt.alias)
			assert.Equal(t, "billing.Invoice", cfg.Imports[tt.alias].(*host.Type).Name)
		})
	}
}

func TestConfigFrom_ImportErrors(t *testing.T) {
	tests := []struct {
		name    string
		imports any
		want    string
	}{
		{"unknown in list", []any{"nope.Missing"}, `unknown type "nope.Missing"`},
		{"unknown in mapping", map[string]any{"X": "nope.Missing"}, `unknown type "nope.Missing"`},
		{"wrong shape", 3, "expected a list or mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.New(map[string]any{"imports": tt.imports})
			_, err := ConfigFrom(c, invoiceTypes())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFromConfig(t *testing.T) {
	c, err := config.FromJSON([]byte(`{
		"source_name": "billing",
		"cache_size": 1,
		"imports": {"Inv": "billing.Invoice"}
	}`))
	require.NoError(t, err)

	engine, err := FromConfig(c, invoiceTypes())
	require.NoError(t, err)
	assert.Equal(t, "billing", engine.Config().SourceName)

	ctx := context.Background()
	v, err := engine.Eval(ctx, "new Inv(3).Lines * 2", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(6), v)

	_, err = engine.Eval(ctx, "1 + 1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.CacheLen(), "cache_size bounds the compile cache")

	_, err = FromConfig(config.New(map[string]any{"imports": []any{"nope.X"}}), nil)
	assert.Error(t, err)
}
