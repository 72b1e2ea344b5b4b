package ingestwf

import (
	"errors"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/ingestion"
	"github.com/uw-ssec/ca-biositing-sub000/internal/views"
)

func activityOptions(attempts int32) workflow.ActivityOptions {
	if attempts < 1 {
		attempts = 3
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        attempts,
			NonRetryableErrorTypes: []string{ErrTypeBadBatch},
		},
	}
}

// IngestWorkflow loads one batch: parents, then observations, each as its
// own activity so a retry repeats only the failed stage. The loaders are
// idempotent, so a repeated stage inserts nothing twice.
func IngestWorkflow(ctx workflow.Context, in IngestInput) (IngestOutput, error) {
	var out IngestOutput
	if strings.TrimSpace(in.URI) == "" {
		return out, temporal.NewNonRetryableApplicationError("missing batch uri", ErrTypeBadBatch, nil)
	}
	if strings.TrimSpace(in.RunID) == "" {
		in.RunID = workflow.GetInfo(ctx).WorkflowExecution.RunID
	}
	logger := workflow.GetLogger(ctx)
	ctx = workflow.WithActivityOptions(ctx, activityOptions(in.Attempts))

	out.Result = ingestion.LoadResult{RunID: in.RunID, ParentsInserted: map[types.ParentType]int64{}}
	if err := workflow.ExecuteActivity(ctx, ActivityStartRun, in).Get(ctx, nil); err != nil {
		logger.Warn("Start run activity failed", "error", err)
	}

	finish := func(runErr error) {
		fin := FinishInput{In: in, Result: out.Result}
		if runErr != nil {
			fin.Error = runErr.Error()
		}
		// Finish must run even if the workflow is being cancelled.
		dctx, _ := workflow.NewDisconnectedContext(ctx)
		if err := workflow.ExecuteActivity(dctx, ActivityFinishRun, fin).Get(dctx, nil); err != nil {
			logger.Warn("Finish run activity failed", "error", err)
		}
	}

	var parents ParentStage
	if err := workflow.ExecuteActivity(ctx, ActivityLoadParents, in).Get(ctx, &parents); err != nil {
		finish(err)
		return out, err
	}
	out.Result.Rows = parents.Rows
	out.Result.ParentsInserted = parents.Result.Inserted
	if len(parents.Result.MissingKey) > 0 {
		out.Result.ParentsMissingKey = parents.Result.MissingKey
	}

	var obs ingestion.ObservationLoadResult
	if err := workflow.ExecuteActivity(ctx, ActivityLoadObservations, in).Get(ctx, &obs); err != nil {
		finish(err)
		return out, err
	}
	out.Result.ObservationsInserted = obs.Inserted
	out.Result.Skipped = obs.Skipped
	finish(nil)

	if in.RefreshViews {
		if err := workflow.ExecuteActivity(ctx, ActivityRefreshViews, RefreshInput{}).Get(ctx, &out.Refresh); err != nil {
			return out, err
		}
	}
	return out, nil
}

// RefreshViewsWorkflow refreshes canonical and aggregate views.
func RefreshViewsWorkflow(ctx workflow.Context, in RefreshInput) ([]views.RefreshResult, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(in.Attempts))
	var out []views.RefreshResult
	err := workflow.ExecuteActivity(ctx, ActivityRefreshViews, in).Get(ctx, &out)
	if err != nil {
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && appErr.Type() == ErrTypeViewDependency {
			workflow.GetLogger(ctx).Error("View refresh rejected", "error", err)
		}
	}
	return out, err
}
