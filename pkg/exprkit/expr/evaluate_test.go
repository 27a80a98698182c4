package expr

import (
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestEvaluator_EqualityOperator(t *testing.T) {
	tests := []struct {
		name string
		expr string
		vars map[string]any
		want bool
	}{
		{
			name: "string equality with quoted string",
			expr: "status == 'active'",
			vars: map[string]any{"status": "active"},
			want: true,
		},
		{
			name: "string equality with double quoted string",
			expr: `status == "active"`,
			vars: map[string]any{"status": "active"},
			want: true,
		},
		{
			name: "string equality false",
			expr: "status == 'inactive'",
			vars: map[string]any{"status": "active"},
			want: false,
		},
		{
			name: "number equality",
			expr: "count == 5",
			vars: map[string]any{"count": 5},
			want: true,
		},
		{
			name: "number equality across widths",
			expr: "count == 5.0",
			vars: map[string]any{"count": int32(5)},
			want: true,
		},
		{
			name: "boolean equality",
			expr: "enabled == true",
			vars: map[string]any{"enabled": true},
			want: true,
		},
		{
			name: "two variables equality",
			expr: "a == b",
			vars: map[string]any{"a": "x", "b": "x"},
			want: true,
		},
		{
			name: "numeric string equals number",
			expr: "code == 200",
			vars: map[string]any{"code": "200"},
			want: true,
		},
		{
			name: "empty literal",
			expr: "name == empty",
			vars: map[string]any{"name": "  "},
			want: true,
		},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q, %v) = %v, want %v", tt.expr, tt.vars, got, tt.want)
			}
		})
	}
}

func TestEvaluator_NumericComparisonOperators(t *testing.T) {
	tests := []struct {
		name string
		expr string
		vars map[string]any
		want bool
	}{
		{"less than true", "count < 10", map[string]any{"count": 5}, true},
		{"less than false", "count < 5", map[string]any{"count": 5}, false},
		{"less than with float", "price < 9.99", map[string]any{"price": 5.5}, true},
		{"greater than true", "count > 3", map[string]any{"count": 5}, true},
		{"less or equal", "count <= 5", map[string]any{"count": 5}, true},
		{"greater or equal false", "count >= 6", map[string]any{"count": 5}, false},
		{"negative number comparison", "temp < -5", map[string]any{"temp": -10}, true},
		{"two variables comparison", "a > b", map[string]any{"a": 10, "b": 3}, true},
		{"int64 variable", "count > 5", map[string]any{"count": int64(10)}, true},
		{"float32 variable", "price > 5.0", map[string]any{"price": float32(10.5)}, true},
		{"string numeric comparison", "value > 5", map[string]any{"value": "10"}, true},
		{"string ordering", "name < 'bob'", map[string]any{"name": "alice"}, true},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q, %v) = %v, want %v", tt.expr, tt.vars, got, tt.want)
			}
		})
	}
}

func TestEvaluator_LogicalOperators(t *testing.T) {
	tests := []struct {
		name string
		expr string
		vars map[string]any
		want bool
	}{
		{"and both true", "a and b", map[string]any{"a": true, "b": true}, true},
		{"and right false", "a && b", map[string]any{"a": true, "b": false}, false},
		{"or left true", "a or b", map[string]any{"a": true, "b": false}, true},
		{"or both false", "a || b", map[string]any{"a": false, "b": false}, false},
		{"not true", "not a", map[string]any{"a": true}, false},
		{"bang false", "!a", map[string]any{"a": false}, true},
		{"double negation", "not not enabled", map[string]any{"enabled": true}, true},
		{"double bang", "!!enabled", map[string]any{"enabled": true}, true},
		{"and with comparison", "x > 1 and y < 5", map[string]any{"x": 2, "y": 3}, true},
		{"not and or combined", "not a and b or c", map[string]any{"a": true, "b": true, "c": true}, true},
		{"contains", "tags contains 'vip'", map[string]any{"tags": []string{"new", "vip"}}, true},
		{"contains substring", "msg contains 'err'", map[string]any{"msg": "an error"}, true},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q, %v) = %v, want %v", tt.expr, tt.vars, got, tt.want)
			}
		})
	}
}

func TestEvaluator_Truthiness(t *testing.T) {
	tests := []struct {
		name string
		expr string
		vars map[string]any
		want bool
	}{
		{"non-empty string", "v", map[string]any{"v": "x"}, true},
		{"empty string", "v", map[string]any{"v": ""}, false},
		{"zero int", "v", map[string]any{"v": 0}, false},
		{"nil value", "v", map[string]any{"v": nil}, false},
		{"empty list", "v", map[string]any{"v": []any{}}, false},
		{"literal null", "null", nil, false},
		{"literal true", "true", nil, true},
		{"number literal", "42", nil, true},
		{"zero literal", "0", nil, false},
		{"quoted empty string", "''", nil, false},
		{"empty expression", "", nil, false},
		{"whitespace only", "   ", nil, false},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluator_UndefinedVariableFails(t *testing.T) {
	_, err := New().Evaluate("missing == 'x'", map[string]any{})
	if !errors.Is(err, ErrUnresolvableIdentifier) {
		t.Fatalf("err = %v, want ErrUnresolvableIdentifier", err)
	}
	var re *ResolutionError
	if !errors.As(err, &re) || re.Name != "missing" {
		t.Errorf("err = %#v, want ResolutionError for missing", err)
	}
}

func TestEvaluator_SyntaxError(t *testing.T) {
	_, err := New().Evaluate("a ==", map[string]any{"a": 1})
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("err = %v, want ErrSyntax", err)
	}
}

func TestEvaluator_WithCustomOperator(t *testing.T) {
	matchesOp := func(left, right any) bool {
		pattern, ok := right.(string)
		if !ok {
			return false
		}
		value, ok := left.(string)
		if !ok {
			return false
		}
		matched, err := regexp.MatchString(pattern, value)
		return err == nil && matched
	}

	e := New(WithCustomOperator("matches", matchesOp))

	tests := []struct {
		name string
		expr string
		vars map[string]any
		want bool
	}{
		{"matches prefix pattern", "name matches '^test.*'", map[string]any{"name": "test_123"}, true},
		{"matches suffix pattern", "name matches '.*_suffix$'", map[string]any{"name": "value_suffix"}, true},
		{"matches fails", "name matches '^foo'", map[string]any{"name": "bar"}, false},
		{"combined with and", "name matches '^t' && n > 1", map[string]any{"name": "t", "n": 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q, %v) = %v, want %v", tt.expr, tt.vars, got, tt.want)
			}
		})
	}
}

func TestEvaluator_MultipleCustomOperators(t *testing.T) {
	startsWith := func(left, right any) bool {
		l, _ := left.(string)
		r, _ := right.(string)
		return strings.HasPrefix(l, r)
	}
	endsWith := func(left, right any) bool {
		l, _ := left.(string)
		r, _ := right.(string)
		return strings.HasSuffix(l, r)
	}

	e := New(
		WithCustomOperator("startswith", startsWith),
		WithCustomOperator("endswith", endsWith),
	)

	tests := []struct {
		expr string
		want bool
	}{
		{"path startswith '/api'", true},
		{"path startswith '/web'", false},
		{"path endswith '.json'", true},
		{"path endswith '.xml'", false},
	}

	vars := map[string]any{"path": "/api/items.json"}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr, vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"true", true, true},
		{"false", false, false},
		{"empty string", "", false},
		{"non-empty string", "hello", true},
		{"zero int", 0, false},
		{"positive int", 5, true},
		{"negative int", -1, true},
		{"zero int64", int64(0), false},
		{"zero int32", int32(0), false},
		{"positive int32", int32(5), true},
		{"zero float64", 0.0, false},
		{"positive float64", 3.14, true},
		{"zero float32", float32(0), false},
		{"empty slice", []int{}, false},
		{"slice", []int{1, 2, 3}, true},
		{"map", map[string]int{"a": 1}, true},
		{"empty literal", Empty, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsTruthy(tt.v)
			if got != tt.want {
				t.Errorf("IsTruthy(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestToFloat64(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want float64
	}{
		{"float64", 3.14, 3.14},
		{"float32", float32(2.5), 2.5},
		{"int", 42, 42.0},
		{"int64", int64(100), 100.0},
		{"int32", int32(50), 50.0},
		{"string number", "3.14", 3.14},
		{"string non-number", "hello", 0.0},
		{"nil", nil, 0.0},
		{"bool", true, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToFloat64(tt.v)
			if got != tt.want {
				t.Errorf("ToFloat64(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name    string
		left    any
		right   any
		op      string
		want    bool
		wantErr bool
	}{
		{"equals true", "hello", "hello", "==", true, false},
		{"equals false", "hello", "world", "==", false, false},
		{"not equals true", "hello", "world", "!=", true, false},
		{"less than true", 5, 10, "<", true, false},
		{"greater than false", 5, 10, ">", false, false},
		{"less or equal true (equal)", 5, 5, "<=", true, false},
		{"greater or equal true (greater)", 10, 5, ">=", true, false},
		{"mixed widths", int32(5), 5.5, "<", true, false},
		{"contains true", "hello world", "world", "contains", true, false},
		{"contains false", "hello world", "foo", "contains", false, false},
		{"incomparable", true, 1, "<", false, true},
		{"unknown operator", 1, 2, "??", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.left, tt.right, tt.op)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare(%v, %v, %q) = %v, want %v", tt.left, tt.right, tt.op, got, tt.want)
			}
		})
	}
}

func TestNew_DefaultEvaluator(t *testing.T) {
	e := New()
	if e == nil {
		t.Fatal("New() returned nil")
	}

	result, err := e.Evaluate("5 > 3", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result {
		t.Error("expected true for 5 > 3")
	}
}
