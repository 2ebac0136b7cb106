package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ToolRunner matches the gateway execution interface so the observer can
// wrap any runner without importing the server package.
type ToolRunner interface {
	Run(ctx context.Context, name string, input map[string]any) (any, error)
}

// InvocationObserver records tool invocation signals into OpenTelemetry.
type InvocationObserver struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	failures    metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewInvocationObserver creates an invocation observer bound to the
// provided meter and tracer. A nil tracer disables span creation.
func NewInvocationObserver(meter metric.Meter, tracer trace.Tracer) (*InvocationObserver, error) {
	invocations, err := meter.Int64Counter(
		"huntgate.tool.invocations",
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		"huntgate.tool.failures",
		metric.WithDescription("Number of failed tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"huntgate.tool.latency",
		metric.WithDescription("Tool invocation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &InvocationObserver{
		tracer:      tracer,
		invocations: invocations,
		failures:    failures,
		latency:     latency,
	}, nil
}

// InstrumentedRunner wraps a ToolRunner, recording a span, a latency
// sample, and counters for every invocation.
type InstrumentedRunner struct {
	next ToolRunner
	obs  *InvocationObserver
	now  func() time.Time
}

// InstrumentRunner wraps next with invocation instrumentation. A nil
// observer returns next unchanged behavior via passthrough.
func InstrumentRunner(next ToolRunner, obs *InvocationObserver) *InstrumentedRunner {
	return &InstrumentedRunner{
		next: next,
		obs:  obs,
		now:  time.Now,
	}
}

// Run executes the wrapped runner and records the outcome.
func (r *InstrumentedRunner) Run(ctx context.Context, name string, input map[string]any) (any, error) {
	if r.obs == nil {
		return r.next.Run(ctx, name, input)
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", name),
	}

	var span trace.Span
	if r.obs.tracer != nil {
		ctx, span = r.obs.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(attrs...))
	}

	start := r.now()
	result, err := r.next.Run(ctx, name, input)
	elapsed := r.now().Sub(start)

	options := metric.WithAttributes(append(attrs,
		attribute.Bool("success", err == nil),
	)...)
	mctx := context.Background()
	r.obs.invocations.Add(mctx, 1, options)
	r.obs.latency.Record(mctx, elapsed.Seconds(), options)
	if err != nil {
		r.obs.failures.Add(mctx, 1, metric.WithAttributes(attrs...))
	}

	if span != nil {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	return result, err
}
