package otel

import (
	"context"
	"errors"
	"net/url"
	"strings"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"launchpad/internal/errdefs"
)

// SDKOptions selects the OTLP/HTTP collector and the resource launchpad
// reports as.
type SDKOptions struct {
	Enabled bool
	// Endpoint is host:port or a URL. An http:// URL implies Insecure.
	Endpoint       string
	Insecure       bool
	ServiceName    string
	ServiceVersion string
	// ResourceAttributes is a "key=value,key=value" list.
	ResourceAttributes string
}

// Shutdown flushes and stops whatever SetupSDK installed.
type Shutdown func(context.Context) error

// SetupSDK installs global trace and meter providers. Disabled telemetry
// leaves the no-op globals in place.
func SetupSDK(ctx context.Context, options SDKOptions) (Shutdown, error) {
	noop := func(context.Context) error { return nil }
	if !options.Enabled {
		return noop, nil
	}
	endpoint, insecure, err := collectorEndpoint(options.Endpoint)
	if err != nil {
		return nil, err
	}
	insecure = insecure || options.Insecure
	extra, err := ParseResourceAttributes(options.ResourceAttributes)
	if err != nil {
		return nil, err
	}
	res, err := buildResource(ctx, options, extra)
	if err != nil {
		return nil, err
	}

	var stops []Shutdown
	stopAll := func(ctx context.Context) error {
		var errs []error
		for i := len(stops) - 1; i >= 0; i-- {
			errs = append(errs, stops[i](ctx))
		}
		return errors.Join(errs...)
	}

	traceOptions := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	metricOptions := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		traceOptions = append(traceOptions, otlptracehttp.WithInsecure())
		metricOptions = append(metricOptions, otlpmetrichttp.WithInsecure())
	}
	traceExporter, err := otlptracehttp.New(ctx, traceOptions...)
	if err != nil {
		return nil, err
	}
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithResource(res), sdktrace.WithBatcher(traceExporter))
	stops = append(stops, tracerProvider.Shutdown)

	metricExporter, err := otlpmetrichttp.New(ctx, metricOptions...)
	if err != nil {
		return nil, errors.Join(err, stopAll(ctx))
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
	)
	stops = append(stops, meterProvider.Shutdown)

	otelapi.SetTracerProvider(tracerProvider)
	otelapi.SetMeterProvider(meterProvider)
	otelapi.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return stopAll, nil
}

func buildResource(ctx context.Context, options SDKOptions, extra map[string]string) (*resource.Resource, error) {
	name := strings.TrimSpace(options.ServiceName)
	if name == "" {
		name = "launchpad"
	}
	attributes := []attribute.KeyValue{semconv.ServiceName(name)}
	if version := strings.TrimSpace(options.ServiceVersion); version != "" {
		attributes = append(attributes, semconv.ServiceVersion(version))
	}
	for key, value := range extra {
		attributes = append(attributes, attribute.String(key, value))
	}
	return resource.New(ctx,
		resource.WithHost(),
		resource.WithProcessPID(),
		resource.WithAttributes(attributes...),
	)
}

// collectorEndpoint accepts "host:port" or "http(s)://host:port" and
// returns host:port plus whether the scheme asked for plain HTTP.
func collectorEndpoint(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "127.0.0.1:4318", false, nil
	}
	if !strings.Contains(raw, "://") {
		return strings.TrimSuffix(raw, "/"), false, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", false, errdefs.Config("invalid telemetry endpoint %q", raw)
	}
	switch parsed.Scheme {
	case "http":
		return parsed.Host, true, nil
	case "https":
		return parsed.Host, false, nil
	}
	return "", false, errdefs.Config("telemetry endpoint %q must use http or https", raw)
}

// ParseResourceAttributes reads a "key=value,key=value" list. Blank entries
// are ignored; a pair without a key is a config error.
func ParseResourceAttributes(raw string) (map[string]string, error) {
	attributes := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, errdefs.Config("invalid resource attribute %q, expected key=value", pair)
		}
		attributes[key] = strings.TrimSpace(value)
	}
	return attributes, nil
}
