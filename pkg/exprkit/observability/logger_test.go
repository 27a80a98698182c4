package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogger returns a debug-level JSON logger and a function decoding
// every record written so far.
func captureLogger(t *testing.T) (*slog.Logger, func() []map[string]any) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() []map[string]any {
		var records []map[string]any
		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if line == "" {
				continue
			}
			var rec map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &rec))
			records = append(records, rec)
		}
		return records
	}
}

func TestEnrichLogger(t *testing.T) {
	logger, records := captureLogger(t)

	EnrichLogger(logger, "unit-1", "pricing").Info("work")

	got := records()
	require.Len(t, got, 1)
	assert.Equal(t, "unit-1", got[0]["unit_id"])
	assert.Equal(t, "pricing", got[0]["source_name"])
	assert.Nil(t, EnrichLogger(nil, "a", "b"))
}

func TestLogHelpers(t *testing.T) {
	logger, records := captureLogger(t)
	err := errors.New("boom")

	LogCompile(logger, "u1", 1.5, 7, false)
	LogCompileError(logger, "rules", err, 2)
	LogEvalComplete(logger, "u1", 0.25)
	LogEvalError(logger, "u1", err, "resolution", 0.5)
	LogCacheMiss(logger, "rules", 3)
	LogAccessorDemoted(logger, "u1", "order.total")

	got := records()
	require.Len(t, got, 6)

	tests := []struct {
		level string
		msg   string
		key   string
		want  any
	}{
		{"DEBUG", "expression compiled", "nodes", 7.0},
		{"ERROR", "expression compile failed", "diagnostics", 2.0},
		{"DEBUG", "expression evaluated", "duration_ms", 0.25},
		{"ERROR", "expression evaluation failed", "category", "resolution"},
		{"DEBUG", "compile cache miss", "cache_size", 3.0},
		{"DEBUG", "accessor demoted", "path", "order.total"},
	}
	for i, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.level, got[i]["level"])
			assert.Equal(t, tt.msg, got[i]["msg"])
			assert.Equal(t, tt.want, got[i][tt.key])
		})
	}
	assert.Equal(t, "boom", got[1]["error"])
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogCompile(nil, "u", 0, 0, true)
		LogCompileError(nil, "s", errors.New("x"), 0)
		LogEvalComplete(nil, "u", 0)
		LogEvalError(nil, "u", errors.New("x"), "", 0)
		LogCacheMiss(nil, "s", 0)
		LogAccessorDemoted(nil, "u", "p")
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(2 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), 2.0)
}
