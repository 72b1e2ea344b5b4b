package records

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParentType(t *testing.T) {
	got, err := ParseParentType(" proximate ")
	require.NoError(t, err)
	assert.Equal(t, ParentProximate, got)

	_, err = ParseParentType("ASSAY")
	assert.True(t, errors.Is(err, ErrUnknownParentType))
}

func TestFamilyVariants(t *testing.T) {
	lab := FamilyVariants(FamilyLabAnalysis)
	require.Len(t, lab, 3)
	for _, v := range lab {
		assert.Equal(t, KeyRecord, v.Key, v.Type)
	}
	census := FamilyVariants(FamilyCensus)
	require.Len(t, census, 1)
	assert.Equal(t, "census_record", census[0].Table)
	assert.Equal(t, KeyNatural, census[0].Key)
}

func TestHandleUsesVariantReference(t *testing.T) {
	h, err := Handle(CensusRecord{ID: 17, GeographyID: "06001", Period: 2022, CommodityCode: 1})
	require.NoError(t, err)
	assert.Equal(t, ParentCensus, h.Type)
	assert.Equal(t, "17", h.Reference)
	require.NotNil(t, h.Period)
	assert.Equal(t, 2022, *h.Period)

	res := int64(9)
	h, err = Handle(&UltimateRecord{LabRecord{ID: 3, RecordKey: "ULT-0003", ResourceID: &res}})
	require.NoError(t, err)
	assert.Equal(t, ParentUltimate, h.Type)
	assert.Equal(t, "ULT-0003", h.Reference)
	assert.Equal(t, &res, h.ResourceID)

	_, err = Handle(struct{}{})
	assert.ErrorIs(t, err, ErrUnknownParentType)
}

func TestDatasetName(t *testing.T) {
	ds := NewDataset("USDA", ParentSurvey, 2023, nil)
	assert.Equal(t, "USDA_SURVEY_2023", ds.Name)
	assert.Equal(t, 2023, ds.PeriodStart.Year())
	assert.Equal(t, 12, int(ds.PeriodEnd.Month()))
}
