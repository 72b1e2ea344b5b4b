package ingestwf

import (
	"github.com/uw-ssec/ca-biositing-sub000/internal/ingestion"
	"github.com/uw-ssec/ca-biositing-sub000/internal/views"
)

const (
	IngestWorkflowName  = "biositing_ingest"
	RefreshWorkflowName = "biositing_refresh_views"

	ActivityStartRun         = "ingest_start_run"
	ActivityLoadParents      = "ingest_load_parents"
	ActivityLoadObservations = "ingest_load_observations"
	ActivityFinishRun        = "ingest_finish_run"
	ActivityRefreshViews     = "refresh_views"

	// Non-retryable application error types.
	ErrTypeBadBatch       = "BadBatch"
	ErrTypeViewDependency = "ViewDependency"
	ErrTypeStorage        = "Storage"
)

// IngestInput names one batch. RunID defaults to the workflow run id.
type IngestInput struct {
	URI            string `json:"uri"`
	RunID          string `json:"run_id,omitempty"`
	LineageGroupID string `json:"lineage_group_id,omitempty"`
	// RefreshViews refreshes every registered view after a successful load.
	RefreshViews bool `json:"refresh_views,omitempty"`
	// Attempts bounds retries of each activity.
	Attempts int32 `json:"attempts,omitempty"`
}

// ParentStage is the result of the parent activity.
type ParentStage struct {
	Rows   int                        `json:"rows"`
	Result ingestion.ParentLoadResult `json:"result"`
}

// FinishInput closes the ingestion_run row for a pass.
type FinishInput struct {
	In     IngestInput          `json:"in"`
	Result ingestion.LoadResult `json:"result"`
	Error  string               `json:"error,omitempty"`
}

type IngestOutput struct {
	Result  ingestion.LoadResult  `json:"result"`
	Refresh []views.RefreshResult `json:"refresh,omitempty"`
}

// RefreshInput refreshes Views in order, or every view when empty.
type RefreshInput struct {
	Views    []string `json:"views,omitempty"`
	Attempts int32    `json:"attempts,omitempty"`
}
