package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records exprkit metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordCompile records a compilation with its duration and error status.
	RecordCompile(ctx context.Context, sourceName string, duration time.Duration, err error)

	// RecordEvaluation records an evaluation. category is empty on success
	// and names the error category otherwise.
	RecordEvaluation(ctx context.Context, sourceName string, duration time.Duration, category string)

	// RecordCacheLookup records a compile cache lookup.
	RecordCacheLookup(ctx context.Context, hit bool)

	// RecordAccessor records an accessor cache transition: a promotion to
	// the optimized path or a demotion back to the safe path.
	RecordAccessor(ctx context.Context, promoted bool)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	compiles      metric.Int64Counter
	compileErrors metric.Int64Counter
	compileTime   metric.Float64Histogram
	evaluations   metric.Int64Counter
	evalLatency   metric.Float64Histogram
	evalErrors    metric.Int64Counter
	cacheLookups  metric.Int64Counter
	accessors     metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("exprkit")

	compiles, err := meter.Int64Counter("exprkit.compile.count",
		metric.WithDescription("Number of compilations"),
	)
	if err != nil {
		return nil, err
	}

	compileErrors, err := meter.Int64Counter("exprkit.compile.errors",
		metric.WithDescription("Number of failed compilations"),
	)
	if err != nil {
		return nil, err
	}

	compileTime, err := meter.Float64Histogram("exprkit.compile.latency_ms",
		metric.WithDescription("Compilation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	evaluations, err := meter.Int64Counter("exprkit.eval.count",
		metric.WithDescription("Number of evaluations"),
	)
	if err != nil {
		return nil, err
	}

	evalLatency, err := meter.Float64Histogram("exprkit.eval.latency_ms",
		metric.WithDescription("Evaluation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	evalErrors, err := meter.Int64Counter("exprkit.eval.errors",
		metric.WithDescription("Number of failed evaluations by category"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter("exprkit.cache.lookups",
		metric.WithDescription("Compile cache lookups by outcome"),
	)
	if err != nil {
		return nil, err
	}

	accessors, err := meter.Int64Counter("exprkit.accessor.transitions",
		metric.WithDescription("Accessor cache promotions and demotions"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		compiles:      compiles,
		compileErrors: compileErrors,
		compileTime:   compileTime,
		evaluations:   evaluations,
		evalLatency:   evalLatency,
		evalErrors:    evalErrors,
		cacheLookups:  cacheLookups,
		accessors:     accessors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordCompile(ctx context.Context, sourceName string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("source_name", sourceName))
	m.compiles.Add(ctx, 1, attrs)
	m.compileTime.Record(ctx, durationMs(duration), attrs)
	if err != nil {
		m.compileErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordEvaluation(ctx context.Context, sourceName string, duration time.Duration, category string) {
	attrs := []attribute.KeyValue{
		attribute.String("source_name", sourceName),
		attribute.Bool("success", category == ""),
	}
	m.evaluations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.evalLatency.Record(ctx, durationMs(duration), metric.WithAttributes(attrs...))
	if category != "" {
		m.evalErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("source_name", sourceName),
			attribute.String("category", category),
		))
	}
}

func (m *otelMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

func (m *otelMetrics) RecordAccessor(ctx context.Context, promoted bool) {
	transition := "demote"
	if promoted {
		transition = "promote"
	}
	m.accessors.Add(ctx, 1, metric.WithAttributes(attribute.String("transition", transition)))
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
