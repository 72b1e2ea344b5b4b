package observations

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

type IngestionRunRepo interface {
	Start(dbc dbctx.Context, run *types.IngestionRun) error
	Finish(dbc dbctx.Context, runID string, status types.RunStatus, summary interface{}, runErr error) error
	GetByRunID(dbc dbctx.Context, runID string) (*types.IngestionRun, error)
}

type ingestionRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIngestionRunRepo(db *gorm.DB, baseLog *logger.Logger) IngestionRunRepo {
	return &ingestionRunRepo{db: db, log: baseLog.With("repo", "IngestionRunRepo")}
}

func (r *ingestionRunRepo) Start(dbc dbctx.Context, run *types.IngestionRun) error {
	if run == nil {
		return nil
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = types.RunRunning
	}
	return dbc.DB(r.db).Create(run).Error
}

func (r *ingestionRunRepo) Finish(dbc dbctx.Context, runID string, status types.RunStatus, summary interface{}, runErr error) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": now,
	}
	if summary != nil {
		b, err := json.Marshal(summary)
		if err != nil {
			return err
		}
		updates["summary"] = datatypes.JSON(b)
	}
	if runErr != nil {
		updates["error"] = runErr.Error()
	}
	return dbc.DB(r.db).
		Model(&types.IngestionRun{}).
		Where("run_id = ?", runID).
		Updates(updates).Error
}

func (r *ingestionRunRepo) GetByRunID(dbc dbctx.Context, runID string) (*types.IngestionRun, error) {
	var out types.IngestionRun
	err := dbc.DB(r.db).Where("run_id = ?", runID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
