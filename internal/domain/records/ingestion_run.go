package records

import (
	"time"

	"gorm.io/datatypes"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// IngestionRun records one ingestion pass and its load summary.
type IngestionRun struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID      string         `gorm:"column:run_id;not null;uniqueIndex" json:"run_id"`
	Source     string         `gorm:"column:source" json:"source"`
	BatchURI   string         `gorm:"column:batch_uri" json:"batch_uri,omitempty"`
	Status     RunStatus      `gorm:"column:status;not null;index" json:"status"`
	Error      string         `gorm:"column:error" json:"error,omitempty"`
	Summary    datatypes.JSON `gorm:"column:summary" json:"summary,omitempty"`
	StartedAt  time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

func (IngestionRun) TableName() string { return "ingestion_run" }

// All lists every model the ingestion engine migrates.
func All() []interface{} {
	return []interface{}{
		&Parameter{}, &Unit{}, &Commodity{}, &Geography{}, &Resource{}, &DimensionType{},
		&Dataset{},
		&CensusRecord{}, &SurveyRecord{},
		&ProximateRecord{}, &UltimateRecord{}, &CompositionalRecord{},
		&Observation{},
		&IngestionRun{},
	}
}
