package records

import (
	"fmt"
	"time"
)

// Dataset groups everything loaded for one (source, parent type, period).
type Dataset struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string     `gorm:"column:name;not null;uniqueIndex:uq_dataset_name" json:"name"`
	SourceCode  string     `gorm:"column:source_code;not null;index:uq_dataset_source_type_period,unique,priority:1" json:"source_code"`
	ParentType  ParentType `gorm:"column:parent_type;not null;index:uq_dataset_source_type_period,unique,priority:2" json:"parent_type"`
	Period      int        `gorm:"column:period;not null;index:uq_dataset_source_type_period,unique,priority:3" json:"period"`
	SourceID    *int64     `gorm:"column:source_id" json:"source_id,omitempty"`
	PeriodStart time.Time  `gorm:"column:period_start;type:date" json:"period_start"`
	PeriodEnd   time.Time  `gorm:"column:period_end;type:date" json:"period_end"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Dataset) TableName() string { return "dataset" }

// DatasetName renders the "<SOURCE>_<PARENT_TYPE>_<PERIOD>" naming convention.
func DatasetName(source string, t ParentType, period int) string {
	return fmt.Sprintf("%s_%s_%d", source, t, period)
}

// NewDataset builds a calendar-year dataset row.
func NewDataset(source string, t ParentType, period int, sourceID *int64) Dataset {
	return Dataset{
		Name:        DatasetName(source, t, period),
		SourceCode:  source,
		ParentType:  t,
		Period:      period,
		SourceID:    sourceID,
		PeriodStart: time.Date(period, time.January, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(period, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}
