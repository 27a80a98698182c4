package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordCompile(ctx, "s", time.Millisecond, errors.New("x"))
		m.RecordEvaluation(ctx, "s", time.Millisecond, "type")
		m.RecordCacheLookup(ctx, true)
		m.RecordAccessor(ctx, false)
	})
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	got, span := sm.StartCompileSpan(ctx, "s")
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())

	got, span = sm.StartEvalSpan(ctx, "u", "s")
	assert.Equal(t, ctx, got)
	assert.NotPanics(t, func() {
		sm.AddSpanEvent(got, "e")
		sm.EndSpanWithError(span, errors.New("x"))
	})
}
