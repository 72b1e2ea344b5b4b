package views

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
)

func TestBuilderMultiViewUnionsEverySubtype(t *testing.T) {
	d, err := DefineFamily(types.FamilyLabAnalysis)
	require.NoError(t, err)
	assert.Equal(t, KindMulti, d.Kind)

	q, err := NewBuilder(db.DialectSQLite).Query(d)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(q, "UNION ALL"))
	for _, table := range []string{"proximate_record", "ultimate_record", "compositional_record"} {
		assert.Contains(t, q, "JOIN "+table+" p ON o.parent_reference = p.record_key")
	}
	assert.Contains(t, q, "o.parent_type = 'ULTIMATE'")
	assert.Contains(t, q, "LEFT JOIN resource r ON r.id = p.resource_id")
}

func TestBuilderSingleViewJoinsByGeneratedID(t *testing.T) {
	d, err := DefineFamily(types.FamilyCensus)
	require.NoError(t, err)
	assert.Equal(t, KindSingle, d.Kind)
	assert.Equal(t, CensusView, d.Name)

	q, err := NewBuilder(db.DialectPostgres).Query(d)
	require.NoError(t, err)
	assert.NotContains(t, q, "UNION")
	assert.Contains(t, q, "o.parent_reference = CAST(p.id AS TEXT) AND o.parent_type = 'CENSUS'")
	assert.Contains(t, q, "LEFT JOIN primary_ag_product c ON c.id = p.commodity_code")
	for _, col := range Columns {
		assert.Contains(t, q, " AS "+col)
	}
}

func TestBuilderAggregateStddevPerDialect(t *testing.T) {
	d := Aggregate(LabSummaryView, LabView)

	pg, err := NewBuilder(db.DialectPostgres).Query(d)
	require.NoError(t, err)
	assert.Contains(t, pg, "STDDEV_SAMP(value)")
	assert.Contains(t, pg, "FROM "+LabView)
	assert.Contains(t, pg, "GROUP BY entity, geography_id, parameter, unit")

	lite, err := NewBuilder(db.DialectSQLite).Query(d)
	require.NoError(t, err)
	assert.NotContains(t, lite, "STDDEV_SAMP")
	assert.Contains(t, lite, db.SQLiteSqrtFunc+"(")
}

func TestBuilderRejectsBadDefs(t *testing.T) {
	b := NewBuilder(db.DialectSQLite)
	_, err := b.Query(Def{Name: "x", Kind: KindAggregate})
	assert.Error(t, err)
	_, err = b.Query(Def{Name: "x", Kind: KindSingle, Family: types.FamilyLabAnalysis})
	assert.Error(t, err)
	_, err = b.Query(Def{Name: "x", Kind: KindMulti, Family: types.Family("NOPE")})
	assert.Error(t, err)
}
