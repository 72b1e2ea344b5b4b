package views

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
)

// RefreshState records the last successful materialization of a view.
// ObservationWatermark is MAX(observation.id) over the parent types the view
// reads when it was taken; views over views inherit their source's.
type RefreshState struct {
	ViewName             string    `gorm:"column:view_name;primaryKey" json:"view_name"`
	RefreshedAt          time.Time `gorm:"column:refreshed_at;not null" json:"refreshed_at"`
	RowCount             int64     `gorm:"column:row_count;not null" json:"row_count"`
	ObservationWatermark int64     `gorm:"column:observation_watermark;not null" json:"observation_watermark"`
}

func (RefreshState) TableName() string { return "view_refresh_state" }

type stateStore struct {
	db *gorm.DB
}

func (s stateStore) get(dbc dbctx.Context, name string) (*RefreshState, error) {
	var out RefreshState
	err := dbc.DB(s.db).Where("view_name = ?", name).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s stateStore) put(dbc dbctx.Context, st RefreshState) error {
	return dbc.DB(s.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "view_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"refreshed_at", "row_count", "observation_watermark"}),
		}).
		Create(&st).Error
}

func (s stateStore) list(dbc dbctx.Context) ([]RefreshState, error) {
	var out []RefreshState
	if err := dbc.DB(s.db).Order("view_name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
