package runner

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"google.golang.org/grpc/metadata"

	"launchpad/internal/catalog"
	"launchpad/internal/descriptor"
	"launchpad/internal/errdefs"
	"launchpad/internal/logging"
	"launchpad/internal/temporal"
)

var idReusePolicies = map[string]enumspb.WorkflowIdReusePolicy{
	"ALLOW_DUPLICATE":             enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	"ALLOW_DUPLICATE_FAILED_ONLY": enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
	"REJECT_DUPLICATE":            enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	"TERMINATE_IF_RUNNING":        enumspb.WORKFLOW_ID_REUSE_POLICY_TERMINATE_IF_RUNNING,
}

// Immediate starts one workflow execution per deploy.
type Immediate struct {
	Logger *logging.Logger
}

func (r *Immediate) Execute(ctx context.Context, c client.Client, target catalog.Object, payload map[string]any) error {
	task, err := descriptor.DecodeTask(payload)
	if err != nil {
		return err
	}
	logger := runnerLogger(r.Logger)
	options, err := StartOptions(task.Workflow, logger)
	if err != nil {
		return err
	}
	run, err := start(ctx, c, target.Name, task.Workflow, options)
	if err != nil {
		return err
	}
	logger.Info("workflow started", map[string]string{
		"task":        task.Name,
		"workflow":    target.Name,
		"workflow_id": run.GetID(),
		"run_id":      run.GetRunID(),
		"task_queue":  options.TaskQueue,
	})
	if !task.Workflow.Wait {
		return nil
	}
	if err := run.Get(ctx, nil); err != nil {
		return errdefs.Cluster(err, "workflow %s", run.GetID())
	}
	return nil
}

// start issues the start RPC, signal-with-start when the execution names a
// start signal.
func start(ctx context.Context, c client.Client, workflowName string, execution descriptor.Execution, options client.StartWorkflowOptions) (client.WorkflowRun, error) {
	rpcCtx, cancel := rpcContext(ctx, execution)
	defer cancel()
	input := workflowInput(execution)

	var (
		run client.WorkflowRun
		err error
	)
	if execution.StartSignal != "" {
		run, err = c.SignalWithStartWorkflow(rpcCtx, options.ID, execution.StartSignal, signalArg(execution.StartSignalArgs), options, workflowName, input)
	} else {
		run, err = c.ExecuteWorkflow(rpcCtx, options, workflowName, input)
	}
	if err != nil {
		return nil, errdefs.Cluster(err, "start workflow %s", workflowName)
	}
	return run, nil
}

// StartOptions translates the execution fragment into SDK start options.
func StartOptions(execution descriptor.Execution, logger *logging.Logger) (client.StartWorkflowOptions, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if execution.CronSchedule != "" {
		if err := validateCron(execution.CronSchedule); err != nil {
			return client.StartWorkflowOptions{}, err
		}
	}
	id := execution.WorkflowID
	if id == "" {
		id = uuid.NewString()
	}
	taskQueue := execution.TaskQueue
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return client.StartWorkflowOptions{
		ID:                       id,
		TaskQueue:                taskQueue,
		WorkflowExecutionTimeout: std(execution.ExecutionTimeout),
		WorkflowRunTimeout:       std(execution.RunTimeout),
		WorkflowTaskTimeout:      std(execution.TaskTimeout),
		StartDelay:               std(execution.StartDelay),
		WorkflowIDReusePolicy:    idReusePolicy(execution.IDReusePolicy, logger),
		RetryPolicy:              execution.RetryPolicy.Temporal(),
		CronSchedule:             execution.CronSchedule,
		Memo:                     execution.Memo,
		EnableEagerStart:         execution.RequestEagerStart,

		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, nil
}

func idReusePolicy(name string, logger *logging.Logger) enumspb.WorkflowIdReusePolicy {
	if name == "" {
		return enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE
	}
	key := strings.TrimPrefix(strings.ToUpper(name), "WORKFLOW_ID_REUSE_POLICY_")
	if policy, ok := idReusePolicies[key]; ok {
		return policy
	}
	logger.Warn("unknown id reuse policy, using ALLOW_DUPLICATE", map[string]string{"policy": name})
	return enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE
}

func validateCron(expression string) error {
	if _, err := cron.ParseStandard(expression); err != nil {
		return errdefs.Config("cron expression %q: %v", expression, err)
	}
	return nil
}

// workflowInput is the single map argument catalog workflows receive.
func workflowInput(execution descriptor.Execution) map[string]any {
	if execution.WorkflowKwargs == nil {
		return map[string]any{}
	}
	return execution.WorkflowKwargs
}

func signalArg(args []any) any {
	switch len(args) {
	case 0:
		return nil
	case 1:
		return args[0]
	default:
		return args
	}
}

func rpcContext(ctx context.Context, execution descriptor.Execution) (context.Context, context.CancelFunc) {
	if len(execution.RPCMetadata) > 0 {
		pairs := make([]string, 0, 2*len(execution.RPCMetadata))
		for key, value := range execution.RPCMetadata {
			pairs = append(pairs, key, value)
		}
		ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
	}
	return temporal.RPCContext(ctx, std(execution.RPCTimeout))
}
