// Package telemetry wraps goa.design/clue/log and OTEL metrics for the
// worker runtime. Metrics use the global MeterProvider; configure it via
// otel.SetMeterProvider before constructing the recorder.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"goa.design/clue/log"
)

// Metrics records the workflow-level counters emitted by the runtime. A nil
// *Metrics is a valid no-op recorder so call sites need no guards.
type Metrics struct {
	runsStarted     metric.Int64Counter
	runsFinalized   metric.Int64Counter
	chunksPublished metric.Int64Counter
	toolExecutions  metric.Int64Counter
}

// NewMetrics constructs the counter set on the global meter.
func NewMetrics() *Metrics {
	meter := otel.Meter("github.com/truss-ai/truss")
	m := &Metrics{}
	m.runsStarted, _ = meter.Int64Counter("truss.runs.started")
	m.runsFinalized, _ = meter.Int64Counter("truss.runs.finalized")
	m.chunksPublished, _ = meter.Int64Counter("truss.stream.chunks")
	m.toolExecutions, _ = meter.Int64Counter("truss.tools.executions")
	return m
}

// RunStarted counts a run creation.
func (m *Metrics) RunStarted(ctx context.Context) {
	if m == nil || m.runsStarted == nil {
		return
	}
	m.runsStarted.Add(ctx, 1)
}

// RunFinalized counts a terminal status transition.
func (m *Metrics) RunFinalized(ctx context.Context, status string) {
	if m == nil || m.runsFinalized == nil {
		return
	}
	m.runsFinalized.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// ChunkPublished counts one streamed provider chunk.
func (m *Metrics) ChunkPublished(ctx context.Context) {
	if m == nil || m.chunksPublished == nil {
		return
	}
	m.chunksPublished.Add(ctx, 1)
}

// ToolExecuted counts one tool dispatch.
func (m *Metrics) ToolExecuted(ctx context.Context, tool string, success bool) {
	if m == nil || m.toolExecutions == nil {
		return
	}
	m.toolExecutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("success", success),
	))
}

// Errorf logs an error-level message with structured fields via clue.
func Errorf(ctx context.Context, err error, msg string, keyvals ...log.Fielder) {
	log.Error(ctx, err, append([]log.Fielder{log.KV{K: "msg", V: msg}}, keyvals...)...)
}
