package deployment

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	internalotel "launchpad/internal/otel"
)

type registryMetrics struct {
	visits    metric.Int64Counter
	refreshes metric.Int64Counter
	reloaded  metric.Int64Counter
}

func newRegistryMetrics(meter metric.Meter) (*registryMetrics, error) {
	visits, err := meter.Int64Counter(internalotel.MetricRegistryVisits,
		metric.WithDescription("Registry visits"),
	)
	if err != nil {
		return nil, err
	}
	refreshes, err := meter.Int64Counter(internalotel.MetricRegistryRefreshes,
		metric.WithDescription("Refresh cycles by outcome"),
	)
	if err != nil {
		return nil, err
	}
	reloaded, err := meter.Int64Counter(internalotel.MetricModulesReloaded,
		metric.WithDescription("Code modules reloaded"),
	)
	if err != nil {
		return nil, err
	}
	return &registryMetrics{visits: visits, refreshes: refreshes, reloaded: reloaded}, nil
}

func (m *registryMetrics) visit(ctx context.Context, changed bool) {
	m.visits.Add(ctx, 1, metric.WithAttributes(attribute.Bool("changed", changed)))
}

func (m *registryMetrics) refresh(ctx context.Context, reloaded int, err error) {
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String(internalotel.AttrOutcome, internalotel.Outcome(err))))
	if reloaded > 0 {
		m.reloaded.Add(ctx, int64(reloaded))
	}
}
