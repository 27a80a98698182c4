package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("exprkit")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartCompileSpan starts a span for compiling one source.
	StartCompileSpan(ctx context.Context, sourceName string) (context.Context, trace.Span)

	// StartEvalSpan starts a span for one evaluation of a compiled unit.
	StartEvalSpan(ctx context.Context, unitID, sourceName string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartCompileSpan(ctx context.Context, sourceName string) (context.Context, trace.Span) {
	return StartCompileSpan(ctx, sourceName)
}

func (m *otelSpanManager) StartEvalSpan(ctx context.Context, unitID, sourceName string) (context.Context, trace.Span) {
	return StartEvalSpan(ctx, unitID, sourceName)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// StartCompileSpan starts an exprkit.compile span on the global tracer.
func StartCompileSpan(ctx context.Context, sourceName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "exprkit.compile",
		trace.WithAttributes(attribute.String("source.name", sourceName)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartEvalSpan starts an exprkit.eval span on the global tracer.
func StartEvalSpan(ctx context.Context, unitID, sourceName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "exprkit.eval",
		trace.WithAttributes(
			attribute.String("unit.id", unitID),
			attribute.String("source.name", sourceName),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
