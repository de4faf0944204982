package cluster

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	internalotel "launchpad/internal/otel"
)

type fleetMetrics struct {
	deployments      metric.Int64Counter
	workerOperations metric.Int64Counter
}

func newFleetMetrics(meter metric.Meter) (*fleetMetrics, error) {
	deployments, err := meter.Int64Counter(internalotel.MetricDeployments,
		metric.WithDescription("Task deployments by outcome"),
	)
	if err != nil {
		return nil, err
	}
	workerOperations, err := meter.Int64Counter(internalotel.MetricWorkerOperations,
		metric.WithDescription("Worker start, restart and stop operations by outcome"),
	)
	if err != nil {
		return nil, err
	}
	return &fleetMetrics{deployments: deployments, workerOperations: workerOperations}, nil
}

// deployment counts a task deployment and marks the caller's span.
func (m *fleetMetrics) deployment(ctx context.Context, frame Frame, err error) {
	attributes := frameAttributes(frame, err)
	m.deployments.Add(ctx, 1, metric.WithAttributes(attributes...))
	internalotel.RecordSpanEvent(ctx, internalotel.EventTaskDeployed, err, attributes...)
}

func (m *fleetMetrics) workerOperation(ctx context.Context, operation string, frame Frame, err error) {
	attributes := append(frameAttributes(frame, err), attribute.String(internalotel.AttrOperation, operation))
	m.workerOperations.Add(ctx, 1, metric.WithAttributes(attributes...))
	internalotel.RecordSpanEvent(ctx, internalotel.EventWorkerOperation, err, attributes...)
}

func frameAttributes(frame Frame, err error) []attribute.KeyValue {
	attributes := []attribute.KeyValue{attribute.String(internalotel.AttrOutcome, internalotel.Outcome(err))}
	if frame.Connection != nil {
		attributes = append(attributes, attribute.String(internalotel.AttrCluster, frame.Connection.Name()))
	}
	if frame.Namespace != nil {
		attributes = append(attributes, attribute.String(internalotel.AttrNamespace, frame.Namespace.Name()))
	}
	return attributes
}
