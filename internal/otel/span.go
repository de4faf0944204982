package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	EventTaskDeployed    = "launchpad.task.deployed"
	EventWorkerOperation = "launchpad.worker.operation"
)

// RecordSpanEvent adds an event to the span of ctx when it is recording. A
// non-nil err is also recorded on the span and marks it failed.
func RecordSpanEvent(ctx context.Context, name string, err error, attrs ...attribute.KeyValue) {
	if ctx == nil || name == "" {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err, trace.WithAttributes(attrs...))
		span.SetStatus(codes.Error, err.Error())
	}
}
