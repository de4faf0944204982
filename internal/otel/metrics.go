package otel

import (
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	MetricRegistryVisits    = "launchpad.registry.visits"
	MetricRegistryRefreshes = "launchpad.registry.refreshes"
	MetricModulesReloaded   = "launchpad.registry.modules_reloaded"
	MetricDeployments       = "launchpad.fleet.deployments"
	MetricWorkerOperations  = "launchpad.fleet.worker_operations"

	AttrOutcome   = "outcome"
	AttrOperation = "operation"
	AttrCluster   = "cluster"
	AttrNamespace = "namespace"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Meter returns a meter from the global provider. It is a no-op until
// SetupSDK installs a real provider.
func Meter(scope string) metric.Meter {
	return otelapi.GetMeterProvider().Meter(scope)
}

// Outcome maps an error to the outcome attribute value.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
