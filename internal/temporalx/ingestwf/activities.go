package ingestwf

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	"github.com/uw-ssec/ca-biositing-sub000/internal/ingestion"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
	"github.com/uw-ssec/ca-biositing-sub000/internal/views"
)

// BatchOpener reads a batch by URI.
type BatchOpener interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// Activities wraps the ingestion pipeline and view refresher. Each stage
// re-reads the batch, so activities can run on any worker.
type Activities struct {
	Log       *logger.Logger
	Opener    BatchOpener
	Pipeline  *ingestion.Pipeline
	Refresher *views.Refresher
}

func (a *Activities) batch(ctx context.Context, in IngestInput) (ingestion.Batch, error) {
	b := ingestion.Batch{URI: in.URI, RunID: in.RunID, LineageGroupID: in.LineageGroupID}
	if a == nil || a.Opener == nil || a.Pipeline == nil {
		return b, fmt.Errorf("ingestwf: activity not configured")
	}
	rc, err := a.Opener.Open(ctx, in.URI)
	if err != nil {
		return b, err
	}
	defer rc.Close()
	rows, err := ingestion.ReadRows(rc)
	if err != nil {
		return b, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeBadBatch, err)
	}
	b.Rows = rows
	a.Pipeline.Prepare(&b)
	return b, nil
}

func (a *Activities) StartRun(ctx context.Context, in IngestInput) error {
	if a == nil || a.Pipeline == nil {
		return fmt.Errorf("ingestwf: activity not configured")
	}
	a.Pipeline.StartRun(ctx, ingestion.Batch{URI: in.URI, RunID: in.RunID})
	return nil
}

func (a *Activities) LoadParents(ctx context.Context, in IngestInput) (ParentStage, error) {
	b, err := a.batch(ctx, in)
	if err != nil {
		return ParentStage{}, err
	}
	info := activity.GetInfo(ctx)
	if info.Attempt > 1 {
		a.Log.Info("Retrying parent load", "run_id", b.RunID, "attempt", info.Attempt)
	}
	res, _, err := a.Pipeline.LoadParents(ctx, b)
	return ParentStage{Rows: len(b.Rows), Result: res}, storageError(err)
}

func (a *Activities) LoadObservations(ctx context.Context, in IngestInput) (ingestion.ObservationLoadResult, error) {
	b, err := a.batch(ctx, in)
	if err != nil {
		return ingestion.ObservationLoadResult{}, err
	}
	activity.RecordHeartbeat(ctx, len(b.Rows))
	res, err := a.Pipeline.LoadObservations(ctx, b, nil)
	return res, storageError(err)
}

// storageError stops Temporal from retrying failures that will repeat:
// constraint violations, schema errors and the like.
func storageError(err error) error {
	if err == nil || db.IsRetryable(err) {
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeStorage, err)
}

func (a *Activities) FinishRun(ctx context.Context, in FinishInput) error {
	if a == nil || a.Pipeline == nil {
		return fmt.Errorf("ingestwf: activity not configured")
	}
	out := in.Result
	out.RunID = in.In.RunID
	if out.Source == "" {
		out.Source = a.Pipeline.Source()
	}
	var runErr error
	if in.Error != "" {
		runErr = errors.New(in.Error)
	}
	a.Pipeline.FinishRun(ctx, in.In.URI, out, runErr)
	return nil
}

func (a *Activities) RefreshViews(ctx context.Context, in RefreshInput) ([]views.RefreshResult, error) {
	if a == nil || a.Refresher == nil {
		return nil, fmt.Errorf("ingestwf: refresher not configured")
	}
	var (
		out []views.RefreshResult
		err error
	)
	if len(in.Views) == 0 {
		out, err = a.Refresher.RefreshAll(ctx)
	} else {
		out, err = a.Refresher.RefreshOrder(ctx, in.Views)
	}
	if errors.Is(err, views.ErrViewDependency) || errors.Is(err, views.ErrUnknownView) {
		return out, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeViewDependency, err)
	}
	return out, storageError(err)
}
