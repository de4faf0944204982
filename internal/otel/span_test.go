package otel

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRecordSpanEvent(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	ctx, span := provider.Tracer("test").Start(context.Background(), "deploy")
	RecordSpanEvent(ctx, EventTaskDeployed, nil, attribute.String("task", "t1"))
	RecordSpanEvent(ctx, EventWorkerOperation, errors.New("boom"))
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected one span, got %d", len(ended))
	}
	events := ended[0].Events()
	// RecordError adds an "exception" event after the worker event.
	if len(events) != 3 || events[0].Name != EventTaskDeployed || events[1].Name != EventWorkerOperation {
		t.Fatalf("unexpected events %+v", events)
	}
	if ended[0].Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", ended[0].Status())
	}
}

func TestRecordSpanEventWithoutSpan(t *testing.T) {
	RecordSpanEvent(context.Background(), EventTaskDeployed, errors.New("ignored"))
}
