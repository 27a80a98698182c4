package exprkit

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/exprkit/pkg/exprkit/expr"
	"github.com/randalmurphal/exprkit/pkg/exprkit/observability"
)

// cacheObserver reports accessor cache transitions of one evaluation.
type cacheObserver struct {
	ctx     context.Context
	unitID  string
	metrics observability.MetricsRecorder
	logger  *slog.Logger
}

var _ expr.CacheObserver = (*cacheObserver)(nil)

func (o *cacheObserver) OnPromote(*expr.Node) {
	o.metrics.RecordAccessor(o.ctx, true)
}

func (o *cacheObserver) OnDemote(n *expr.Node) {
	o.metrics.RecordAccessor(o.ctx, false)
	observability.LogAccessorDemoted(o.logger, o.unitID, n.Text)
}
