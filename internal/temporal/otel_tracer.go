package temporal

import (
	"context"
	"strings"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.temporal.io/sdk/interceptor"
)

const (
	tracerName = "launchpad/temporal"
	// traceHeader is the Temporal header the span context travels in.
	traceHeader = "launchpad-trace"

	attrOperation = "temporal.operation"
	attrName      = "temporal.name"
)

type spanContextKey struct{}

// spanTracer bridges the SDK tracing interceptor to OpenTelemetry. The tracer
// and propagator are read from the globals on use, so a provider installed
// after dialing still receives the spans.
type spanTracer struct {
	interceptor.BaseTracer
}

type tracedSpan struct {
	span trace.Span
}

// TracingInterceptor propagates OpenTelemetry spans through workflow and
// activity headers.
func TracingInterceptor() interceptor.Interceptor {
	return interceptor.NewTracingInterceptor(spanTracer{})
}

func (spanTracer) Options() interceptor.TracerOptions {
	return interceptor.TracerOptions{
		SpanContextKey: spanContextKey{},
		HeaderKey:      traceHeader,
	}
}

func (spanTracer) MarshalSpan(span interceptor.TracerSpan) (map[string]string, error) {
	traced, ok := span.(*tracedSpan)
	if !ok || !traced.span.SpanContext().IsValid() {
		return nil, nil
	}
	carrier := propagation.MapCarrier{}
	ctx := trace.ContextWithSpan(context.Background(), traced.span)
	otelapi.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		propagation.TraceContext{}.Inject(ctx, carrier)
	}
	return carrier, nil
}

func (spanTracer) UnmarshalSpan(data map[string]string) (interceptor.TracerSpanRef, error) {
	if len(data) == 0 {
		return nil, nil
	}
	carrier := propagation.MapCarrier(data)
	spanContext := trace.SpanContextFromContext(otelapi.GetTextMapPropagator().Extract(context.Background(), carrier))
	if !spanContext.IsValid() {
		spanContext = trace.SpanContextFromContext(propagation.TraceContext{}.Extract(context.Background(), carrier))
	}
	if !spanContext.IsValid() {
		return nil, nil
	}
	return spanContext, nil
}

func (spanTracer) SpanFromContext(ctx context.Context) interceptor.TracerSpan {
	if span, ok := ctx.Value(spanContextKey{}).(interceptor.TracerSpan); ok {
		return span
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return &tracedSpan{span: span}
}

func (spanTracer) ContextWithSpan(ctx context.Context, span interceptor.TracerSpan) context.Context {
	if traced, ok := span.(*tracedSpan); ok {
		ctx = trace.ContextWithSpan(ctx, traced.span)
	}
	return context.WithValue(ctx, spanContextKey{}, span)
}

func (t spanTracer) StartSpan(options *interceptor.TracerStartSpanOptions) (interceptor.TracerSpan, error) {
	ctx := context.Background()
	switch parent := options.Parent.(type) {
	case trace.SpanContext:
		ctx = trace.ContextWithRemoteSpanContext(ctx, parent)
	case *tracedSpan:
		ctx = trace.ContextWithSpan(ctx, parent.span)
	}

	attributes := []attribute.KeyValue{
		attribute.String(attrOperation, options.Operation),
		attribute.String(attrName, options.Name),
	}
	for key, value := range options.Tags {
		if key = strings.TrimSpace(key); key != "" {
			attributes = append(attributes, attribute.String(key, value))
		}
	}
	startOptions := []trace.SpanStartOption{
		trace.WithSpanKind(spanKind(options.Operation)),
		trace.WithAttributes(attributes...),
	}
	if !options.Time.IsZero() {
		startOptions = append(startOptions, trace.WithTimestamp(options.Time))
	}
	_, span := otelapi.Tracer(tracerName).Start(ctx, t.SpanName(options), startOptions...)
	return &tracedSpan{span: span}, nil
}

// spanKind maps interceptor operations ("StartWorkflow", "RunActivity",
// "HandleSignal" ...) to client or server spans.
func spanKind(operation string) trace.SpanKind {
	switch {
	case strings.HasPrefix(operation, "Run"), strings.HasPrefix(operation, "Handle"):
		return trace.SpanKindServer
	case strings.HasPrefix(operation, "Start"), strings.HasPrefix(operation, "Signal"),
		strings.HasPrefix(operation, "Query"), strings.HasPrefix(operation, "Update"):
		return trace.SpanKindClient
	}
	return trace.SpanKindInternal
}

func (s *tracedSpan) Finish(options *interceptor.TracerFinishSpanOptions) {
	if options != nil && options.Error != nil {
		s.span.RecordError(options.Error)
		s.span.SetStatus(codes.Error, options.Error.Error())
	}
	s.span.End()
}
