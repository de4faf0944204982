package temporalworker

import (
	"context"

	"go.temporal.io/sdk/client"
)

// Run serves spec until ctx is done. It backs the worker subcommand.
func Run(ctx context.Context, c client.Client, spec Spec) error {
	sdkWorker, err := NewSDKWorker(c, spec)
	if err != nil {
		return err
	}
	if err := sdkWorker.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	sdkWorker.Stop()
	return nil
}
