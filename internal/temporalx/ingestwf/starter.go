package ingestwf

import (
	"context"
	"fmt"
	"strings"

	enumspb "go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
)

// StartIngest enqueues an ingest workflow. The workflow id derives from the
// batch URI, so enqueueing the same batch twice while one is running is a
// no-op that returns the running execution.
func StartIngest(ctx context.Context, tc temporalsdkclient.Client, taskQueue string, in IngestInput) (temporalsdkclient.WorkflowRun, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                       "ingest:" + strings.TrimSpace(in.URI),
		TaskQueue:                taskQueue,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}
	return tc.ExecuteWorkflow(ctx, opts, IngestWorkflowName, in)
}

// StartRefresh enqueues a view refresh. Only one runs at a time.
func StartRefresh(ctx context.Context, tc temporalsdkclient.Client, taskQueue string, in RefreshInput) (temporalsdkclient.WorkflowRun, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                       "refresh-views",
		TaskQueue:                taskQueue,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
	}
	return tc.ExecuteWorkflow(ctx, opts, RefreshWorkflowName, in)
}
