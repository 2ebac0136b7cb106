// Package otel provides OpenTelemetry instrumentation for the gateway:
// SSE session metrics and spans, and tool invocation metrics and spans.
package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hunt-labs/huntgate/sse"
)

// StreamObserver records SSE session lifecycle signals into OpenTelemetry.
// It implements sse.Observer: a counter for opened sessions, a counter for
// emitted events by type, a histogram of session durations, and one span
// per session covering its whole lifetime.
type StreamObserver struct {
	tracer trace.Tracer

	sessions metric.Int64Counter
	events   metric.Int64Counter
	duration metric.Float64Histogram

	mu    sync.Mutex
	spans map[string]trace.Span // sessionID -> span
}

// NewStreamObserver creates a stream observer bound to the provided
// meter and tracer. A nil tracer disables span creation.
func NewStreamObserver(meter metric.Meter, tracer trace.Tracer) (*StreamObserver, error) {
	sessions, err := meter.Int64Counter(
		"huntgate.stream.sessions",
		metric.WithDescription("Number of SSE sessions opened"),
	)
	if err != nil {
		return nil, err
	}
	events, err := meter.Int64Counter(
		"huntgate.stream.events",
		metric.WithDescription("Number of SSE events emitted"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"huntgate.stream.session.duration",
		metric.WithDescription("SSE session duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &StreamObserver{
		tracer:   tracer,
		sessions: sessions,
		events:   events,
		duration: duration,
		spans:    make(map[string]trace.Span),
	}, nil
}

// SessionOpened increments the session counter and starts a session span.
func (o *StreamObserver) SessionOpened(sessionID string) {
	if o == nil {
		return
	}

	ctx := context.Background()
	o.sessions.Add(ctx, 1)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "sse.session",
		trace.WithAttributes(attribute.String("session_id", sessionID)),
	)
	o.mu.Lock()
	o.spans[sessionID] = span
	o.mu.Unlock()
}

// EventEmitted increments the event counter for the event type.
func (o *StreamObserver) EventEmitted(sessionID string, eventType sse.EventType) {
	if o == nil {
		return
	}

	o.events.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("event_type", string(eventType)),
	))

	o.mu.Lock()
	span, ok := o.spans[sessionID]
	o.mu.Unlock()
	if ok {
		span.AddEvent(string(eventType))
	}
}

// SessionClosed records the session duration and ends the session span.
func (o *StreamObserver) SessionClosed(sessionID string, duration time.Duration) {
	if o == nil {
		return
	}

	o.duration.Record(context.Background(), duration.Seconds())

	o.mu.Lock()
	span, ok := o.spans[sessionID]
	if ok {
		delete(o.spans, sessionID)
	}
	o.mu.Unlock()
	if ok {
		span.End()
	}
}

var _ sse.Observer = (*StreamObserver)(nil)
