// Package observability provides structured logging, metrics and tracing
// for compiling and evaluating expressions.
//
// Logging uses slog. Metrics and tracing use OpenTelemetry through the
// global providers. Each concern has a no-op implementation for when it is
// disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds unit context to a logger.
// Returns a new logger with unit_id and source_name fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, unit.ID, "pricing")
//	enriched.Info("evaluating") // includes unit_id, source_name
func EnrichLogger(logger *slog.Logger, unitID, sourceName string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("unit_id", unitID),
		slog.String("source_name", sourceName),
	)
}

// LogCompile logs a successful compilation.
func LogCompile(logger *slog.Logger, unitID string, durationMs float64, nodes int, literalOnly bool) {
	if logger == nil {
		return
	}
	logger.Debug("expression compiled",
		slog.String("unit_id", unitID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes", nodes),
		slog.Bool("literal_only", literalOnly),
	)
}

// LogCompileError logs a failed compilation with its diagnostic count.
func LogCompileError(logger *slog.Logger, sourceName string, err error, diagnostics int) {
	if logger == nil {
		return
	}
	logger.Error("expression compile failed",
		slog.String("source_name", sourceName),
		slog.String("error", err.Error()),
		slog.Int("diagnostics", diagnostics),
	)
}

// LogEvalComplete logs a successful evaluation.
func LogEvalComplete(logger *slog.Logger, unitID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("expression evaluated",
		slog.String("unit_id", unitID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogEvalError logs a failed evaluation.
func LogEvalError(logger *slog.Logger, unitID string, err error, category string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("expression evaluation failed",
		slog.String("unit_id", unitID),
		slog.String("error", err.Error()),
		slog.String("category", category),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogCacheMiss logs a compile cache miss for a source.
func LogCacheMiss(logger *slog.Logger, sourceName string, size int) {
	if logger == nil {
		return
	}
	logger.Debug("compile cache miss",
		slog.String("source_name", sourceName),
		slog.Int("cache_size", size),
	)
}

// LogAccessorDemoted logs an accessor plan that stopped matching its input.
// Demotions are expected when input shapes vary; frequent ones on the same
// source usually mean the unit should be compiled with Optimize off.
func LogAccessorDemoted(logger *slog.Logger, unitID, path string) {
	if logger == nil {
		return
	}
	logger.Debug("accessor demoted",
		slog.String("unit_id", unitID),
		slog.String("path", path),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
