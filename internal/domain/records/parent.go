package records

import (
	"strconv"
	"time"
)

// Provenance is embedded by every parent record variant.
type Provenance struct {
	DatasetID      *int64    `gorm:"column:dataset_id;index" json:"dataset_id,omitempty"`
	RunID          string    `gorm:"column:run_id;index" json:"run_id,omitempty"`
	LineageGroupID string    `gorm:"column:lineage_group_id" json:"lineage_group_id,omitempty"`
	Note           *string   `gorm:"column:note" json:"note,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// CensusRecord is a census statistic about one commodity in one geography
// for one period.
type CensusRecord struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	GeographyID   string `gorm:"column:geography_id;not null;index:uq_census_record_key,unique,priority:1" json:"geography_id"`
	Period        int    `gorm:"column:period;not null;index:uq_census_record_key,unique,priority:2" json:"period"`
	CommodityCode int64  `gorm:"column:commodity_code;not null;index:uq_census_record_key,unique,priority:3" json:"commodity_code"`
	Provenance
}

func (CensusRecord) TableName() string { return "census_record" }

// SurveyRecord shares the census identity contract and carries optional
// survey metadata that stays NULL when the source omits it.
type SurveyRecord struct {
	ID              int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	GeographyID     string  `gorm:"column:geography_id;not null;index:uq_survey_record_key,unique,priority:1" json:"geography_id"`
	Period          int     `gorm:"column:period;not null;index:uq_survey_record_key,unique,priority:2" json:"period"`
	CommodityCode   int64   `gorm:"column:commodity_code;not null;index:uq_survey_record_key,unique,priority:3" json:"commodity_code"`
	SurveyProgramID *int64  `gorm:"column:survey_program_id" json:"survey_program_id,omitempty"`
	SurveyPeriod    *string `gorm:"column:survey_period" json:"survey_period,omitempty"`
	ReferenceMonth  *string `gorm:"column:reference_month" json:"reference_month,omitempty"`
	SeasonalFlag    *bool   `gorm:"column:seasonal_flag" json:"seasonal_flag,omitempty"`
	Provenance
}

func (SurveyRecord) TableName() string { return "survey_record" }

// LabRecord is the column set shared by laboratory analysis subtypes.
type LabRecord struct {
	ID             int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	RecordKey      string  `gorm:"column:record_key;not null;uniqueIndex" json:"record_key"`
	ResourceID     *int64  `gorm:"column:resource_id;index" json:"resource_id,omitempty"`
	GeographyID    *string `gorm:"column:geography_id" json:"geography_id,omitempty"`
	Period         *int    `gorm:"column:period" json:"period,omitempty"`
	AnalysisMethod *string `gorm:"column:analysis_method" json:"analysis_method,omitempty"`
	Provenance
}

type ProximateRecord struct{ LabRecord }

func (ProximateRecord) TableName() string { return "proximate_record" }

type UltimateRecord struct{ LabRecord }

func (UltimateRecord) TableName() string { return "ultimate_record" }

type CompositionalRecord struct{ LabRecord }

func (CompositionalRecord) TableName() string { return "compositional_record" }

// NaturalKey identifies census and survey records within their variant.
type NaturalKey struct {
	GeographyID   string
	Period        int
	CommodityCode int64
}

// ParentHandle is the resolved target of a polymorphic reference.
type ParentHandle struct {
	Type          ParentType `json:"type"`
	ID            int64      `json:"id"`
	Reference     string     `json:"reference"`
	GeographyID   string     `json:"geography_id,omitempty"`
	Period        *int       `json:"period,omitempty"`
	CommodityCode *int64     `json:"commodity_code,omitempty"`
	RecordKey     string     `json:"record_key,omitempty"`
	ResourceID    *int64     `json:"resource_id,omitempty"`
	DatasetID     *int64     `json:"dataset_id,omitempty"`
}

// IDReference renders a generated id the way observations store it.
func IDReference(id int64) string { return strconv.FormatInt(id, 10) }

func handleFromCensus(r CensusRecord) ParentHandle {
	period, code := r.Period, r.CommodityCode
	return ParentHandle{Type: ParentCensus, ID: r.ID, Reference: IDReference(r.ID), GeographyID: r.GeographyID,
		Period: &period, CommodityCode: &code, DatasetID: r.DatasetID}
}

func handleFromSurvey(r SurveyRecord) ParentHandle {
	period, code := r.Period, r.CommodityCode
	return ParentHandle{Type: ParentSurvey, ID: r.ID, Reference: IDReference(r.ID), GeographyID: r.GeographyID,
		Period: &period, CommodityCode: &code, DatasetID: r.DatasetID}
}

func handleFromLab(t ParentType, r LabRecord) ParentHandle {
	h := ParentHandle{Type: t, ID: r.ID, Reference: r.RecordKey, RecordKey: r.RecordKey, Period: r.Period,
		ResourceID: r.ResourceID, DatasetID: r.DatasetID}
	if r.GeographyID != nil {
		h.GeographyID = *r.GeographyID
	}
	return h
}

// Handle converts any parent record model into its handle.
func Handle(rec interface{}) (ParentHandle, error) {
	switch r := rec.(type) {
	case CensusRecord:
		return handleFromCensus(r), nil
	case *CensusRecord:
		return handleFromCensus(*r), nil
	case SurveyRecord:
		return handleFromSurvey(r), nil
	case *SurveyRecord:
		return handleFromSurvey(*r), nil
	case ProximateRecord:
		return handleFromLab(ParentProximate, r.LabRecord), nil
	case *ProximateRecord:
		return handleFromLab(ParentProximate, r.LabRecord), nil
	case UltimateRecord:
		return handleFromLab(ParentUltimate, r.LabRecord), nil
	case *UltimateRecord:
		return handleFromLab(ParentUltimate, r.LabRecord), nil
	case CompositionalRecord:
		return handleFromLab(ParentCompositional, r.LabRecord), nil
	case *CompositionalRecord:
		return handleFromLab(ParentCompositional, r.LabRecord), nil
	default:
		return ParentHandle{}, ErrUnknownParentType
	}
}
