package temporal

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/api/operatorservice/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"google.golang.org/protobuf/types/known/durationpb"

	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
)

// DefaultRetention is the execution retention of namespaces created without
// an explicit one.
const DefaultRetention = 7 * 24 * time.Hour

// NamespaceAdmin creates and deletes namespaces on one cluster.
type NamespaceAdmin interface {
	RegisterNamespace(ctx context.Context, name string, retention time.Duration) error
	DeleteNamespace(ctx context.Context, name string) error
}

// ServiceClients is the subset of client.Client the admin needs.
type ServiceClients interface {
	WorkflowService() workflowservice.WorkflowServiceClient
	OperatorService() operatorservice.OperatorServiceClient
}

// ServiceAdmin issues namespace RPCs through the frontend services.
type ServiceAdmin struct {
	clients    ServiceClients
	rpcTimeout time.Duration
	logger     *logging.Logger
}

func NewServiceAdmin(clients ServiceClients, rpcTimeout time.Duration, logger *logging.Logger) *ServiceAdmin {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ServiceAdmin{clients: clients, rpcTimeout: rpcTimeout, logger: logger.Named("temporal")}
}

// RegisterNamespace creates the namespace. A namespace that already exists
// is logged and treated as created.
func (a *ServiceAdmin) RegisterNamespace(ctx context.Context, name string, retention time.Duration) error {
	if retention <= 0 {
		retention = DefaultRetention
	}
	rpcCtx, cancel := RPCContext(ctx, a.rpcTimeout)
	defer cancel()
	_, err := a.clients.WorkflowService().RegisterNamespace(rpcCtx, &workflowservice.RegisterNamespaceRequest{
		Namespace:                        name,
		WorkflowExecutionRetentionPeriod: durationpb.New(retention),
	})
	if err == nil {
		a.logger.Info("namespace registered", map[string]string{"namespace": name})
		return nil
	}
	var exists *serviceerror.NamespaceAlreadyExists
	if errors.As(err, &exists) {
		a.logger.Warn("namespace already exists", map[string]string{"namespace": name})
		return nil
	}
	return errdefs.Cluster(err, "register namespace %q", name)
}

func (a *ServiceAdmin) DeleteNamespace(ctx context.Context, name string) error {
	rpcCtx, cancel := RPCContext(ctx, a.rpcTimeout)
	defer cancel()
	if _, err := a.clients.OperatorService().DeleteNamespace(rpcCtx, &operatorservice.DeleteNamespaceRequest{
		Namespace: name,
	}); err != nil {
		return errdefs.Cluster(err, "delete namespace %q", name)
	}
	a.logger.Info("namespace deleted", map[string]string{"namespace": name})
	return nil
}
