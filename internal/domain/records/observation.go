package records

import "time"

// Observation is one measured value about a polymorphic parent. The pair
// (ParentReference, ParentType) has no foreign key; the referenced table
// depends on ParentType.
type Observation struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ParentReference string     `gorm:"column:parent_reference;not null;index:uq_observation_key,unique,priority:1" json:"parent_reference"`
	ParentType      ParentType `gorm:"column:parent_type;not null;index:uq_observation_key,unique,priority:2" json:"parent_type"`
	ParameterID     int64      `gorm:"column:parameter_id;not null;index:uq_observation_key,unique,priority:3" json:"parameter_id"`
	UnitID          int64      `gorm:"column:unit_id;not null;index:uq_observation_key,unique,priority:4" json:"unit_id"`
	Value           float64    `gorm:"column:value;not null" json:"value"`
	DatasetID       *int64     `gorm:"column:dataset_id;index" json:"dataset_id,omitempty"`
	DimensionTypeID *int64     `gorm:"column:dimension_type_id" json:"dimension_type_id,omitempty"`
	DimensionValue  *float64   `gorm:"column:dimension_value" json:"dimension_value,omitempty"`
	DimensionUnitID *int64     `gorm:"column:dimension_unit_id" json:"dimension_unit_id,omitempty"`
	RunID           string     `gorm:"column:run_id;index" json:"run_id,omitempty"`
	LineageGroupID  string     `gorm:"column:lineage_group_id" json:"lineage_group_id,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Observation) TableName() string { return "observation" }

// ObservationKey is the observation uniqueness key.
type ObservationKey struct {
	ParentReference string
	ParentType      ParentType
	ParameterID     int64
	UnitID          int64
}

func (o Observation) Key() ObservationKey {
	return ObservationKey{ParentReference: o.ParentReference, ParentType: o.ParentType, ParameterID: o.ParameterID, UnitID: o.UnitID}
}
