package temporal

import (
	"context"
	"strings"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"google.golang.org/grpc"

	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
)

const DefaultRPCTimeout = 10 * time.Second

// Endpoint identifies one cluster frontend and how to reach it.
type Endpoint struct {
	HostPort string `json:"host_port"`
	// Proxy is an optional HTTP CONNECT proxy URL.
	Proxy  string `json:"proxy,omitempty"`
	APIKey string `json:"-"`
}

type DialOptions struct {
	Endpoint  Endpoint
	Namespace string
	Identity  string
	Logger    *logging.Logger
	// DisableTracing drops the OpenTelemetry interceptor.
	DisableTracing bool
}

// ClientOptions translates dial options into SDK client options.
func ClientOptions(options DialOptions) (client.Options, error) {
	if strings.TrimSpace(options.Endpoint.HostPort) == "" {
		return client.Options{}, errdefs.Config("cluster address is required")
	}
	namespace := options.Namespace
	if namespace == "" {
		namespace = client.DefaultNamespace
	}
	clientOptions := client.Options{
		HostPort:  options.Endpoint.HostPort,
		Namespace: namespace,
		Identity:  options.Identity,
	}
	if options.Logger != nil {
		clientOptions.Logger = NewSDKLogger(options.Logger)
	}
	if !options.DisableTracing {
		clientOptions.Interceptors = []interceptor.ClientInterceptor{TracingInterceptor()}
	}
	if options.Endpoint.APIKey != "" {
		clientOptions.Credentials = client.NewAPIKeyStaticCredentials(options.Endpoint.APIKey)
	}
	if options.Endpoint.Proxy != "" {
		dialer, err := proxyDialer(options.Endpoint.Proxy)
		if err != nil {
			return client.Options{}, err
		}
		clientOptions.ConnectionOptions.DialOptions = append(
			clientOptions.ConnectionOptions.DialOptions,
			grpc.WithContextDialer(dialer),
		)
	}
	return clientOptions, nil
}

// Dial connects to a cluster namespace.
func Dial(ctx context.Context, options DialOptions) (client.Client, error) {
	clientOptions, err := ClientOptions(options)
	if err != nil {
		return nil, err
	}
	sdkClient, err := client.DialContext(ctx, clientOptions)
	if err != nil {
		return nil, errdefs.Cluster(err, "dial %s namespace %s", options.Endpoint.HostPort, clientOptions.Namespace)
	}
	return sdkClient, nil
}

// RPCContext bounds a cluster call. A non-positive timeout uses
// DefaultRPCTimeout.
func RPCContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
