package ingestion

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
)

// Row is one flat input record. It carries both the parent identity and the
// observation it reports; absent values are nil.
type Row struct {
	SourceVariant string `json:"source_variant"`

	GeographyID   string `json:"geography_id,omitempty"`
	Period        *int   `json:"period,omitempty"`
	CommodityCode *int64 `json:"commodity_code,omitempty"`
	RecordKey     string `json:"record_key,omitempty"`

	ParameterID     *int64   `json:"parameter_id,omitempty"`
	UnitID          *int64   `json:"unit_id,omitempty"`
	Value           *float64 `json:"value,omitempty"`
	DimensionTypeID *int64   `json:"dimension_type_id,omitempty"`
	DimensionValue  *float64 `json:"dimension_value,omitempty"`
	DimensionUnitID *int64   `json:"dimension_unit_id,omitempty"`

	SurveyProgramID *int64  `json:"survey_program_id,omitempty"`
	SurveyPeriod    *string `json:"survey_period,omitempty"`
	ReferenceMonth  *string `json:"reference_month,omitempty"`
	SeasonalFlag    *bool   `json:"seasonal_flag,omitempty"`

	ResourceID     *int64  `json:"resource_id,omitempty"`
	AnalysisMethod *string `json:"analysis_method,omitempty"`
	Note           *string `json:"note,omitempty"`

	RunID          string `json:"run_id,omitempty"`
	LineageGroupID string `json:"lineage_group_id,omitempty"`
}

// Field names used in missing-field diagnostics.
const (
	FieldSourceVariant = "source_variant"
	FieldCommodityCode = "commodity_code"
	FieldRecordKey     = "record_key"
	FieldParameterID   = "parameter_id"
	FieldUnitID        = "unit_id"
	FieldValue         = "value"
	FieldGeographyID   = "geography_id"
	FieldPeriod        = "period"
)

// variant parses the row discriminator.
func (r Row) variant() (types.Variant, error) {
	t, err := types.ParseParentType(r.SourceVariant)
	if err != nil {
		return types.Variant{}, err
	}
	return types.MustLookup(t), nil
}

func (r Row) recordKey() string { return strings.TrimSpace(r.RecordKey) }

func (r Row) geographyID() string { return strings.TrimSpace(r.GeographyID) }

// naturalKey reports the census/survey identity, if complete.
func (r Row) naturalKey() (types.NaturalKey, string, bool) {
	switch {
	case r.geographyID() == "":
		return types.NaturalKey{}, FieldGeographyID, false
	case r.Period == nil:
		return types.NaturalKey{}, FieldPeriod, false
	case r.CommodityCode == nil:
		return types.NaturalKey{}, FieldCommodityCode, false
	}
	return types.NaturalKey{GeographyID: r.geographyID(), Period: *r.Period, CommodityCode: *r.CommodityCode}, "", true
}

// missingObservationField returns the first absent required field in the
// order parent key, parameter_id, unit_id, value.
func (r Row) missingObservationField(v types.Variant) string {
	switch v.Key {
	case types.KeyRecord:
		if r.recordKey() == "" {
			return FieldRecordKey
		}
	default:
		if r.CommodityCode == nil {
			return FieldCommodityCode
		}
	}
	switch {
	case r.ParameterID == nil:
		return FieldParameterID
	case r.UnitID == nil:
		return FieldUnitID
	case r.Value == nil:
		return FieldValue
	}
	return ""
}

// ReadRows decodes JSON Lines. Blank lines and lines starting with '#' are
// ignored.
func ReadRows(r io.Reader) ([]Row, error) {
	var out []Row
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 || b[0] == '#' {
			continue
		}
		var row Row
		if err := json.Unmarshal(b, &row); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return out, nil
}
