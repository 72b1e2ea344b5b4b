package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
)

// Lookup ids seeded by SeedLookups.
const (
	ParamAcres    int64 = 1
	ParamYield    int64 = 2
	ParamMoisture int64 = 3
	ParamCarbon   int64 = 4

	UnitAcres   int64 = 1
	UnitTons    int64 = 2
	UnitPercent int64 = 3

	CommodityAlmonds int64 = 1
	CommodityRice    int64 = 2

	ResourceRiceStraw   int64 = 1
	ResourceAlmondHulls int64 = 2

	DimensionYear int64 = 1

	GeoAlameda = "06001"
	GeoFresno  = "06019"
)

func SeedLookups(tb testing.TB, ctx context.Context, db *gorm.DB) {
	tb.Helper()
	rows := []interface{}{
		&[]types.Parameter{{ID: ParamAcres, Name: "area bearing"}, {ID: ParamYield, Name: "yield"}, {ID: ParamMoisture, Name: "moisture"}, {ID: ParamCarbon, Name: "carbon"}},
		&[]types.Unit{{ID: UnitAcres, Name: "acres"}, {ID: UnitTons, Name: "tons"}, {ID: UnitPercent, Name: "percent"}},
		&[]types.Commodity{{ID: CommodityAlmonds, Name: "almonds"}, {ID: CommodityRice, Name: "rice"}},
		&[]types.Geography{{GeoID: GeoAlameda, StateName: "California", CountyName: "Alameda"}, {GeoID: GeoFresno, StateName: "California", CountyName: "Fresno"}},
		&[]types.Resource{{ID: ResourceRiceStraw, Name: "rice straw"}, {ID: ResourceAlmondHulls, Name: "almond hulls"}},
		&[]types.DimensionType{{ID: DimensionYear, Name: "harvest year"}},
	}
	for _, r := range rows {
		if err := db.WithContext(ctx).Create(r).Error; err != nil {
			tb.Fatalf("seed lookups: %v", err)
		}
	}
}

func SeedCensus(tb testing.TB, ctx context.Context, db *gorm.DB, geo string, period int, commodity int64) *types.CensusRecord {
	tb.Helper()
	rec := &types.CensusRecord{GeographyID: geo, Period: period, CommodityCode: commodity}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		tb.Fatalf("seed census record: %v", err)
	}
	return rec
}

func SeedObservation(tb testing.TB, ctx context.Context, db *gorm.DB, o types.Observation) *types.Observation {
	tb.Helper()
	if err := db.WithContext(ctx).Create(&o).Error; err != nil {
		tb.Fatalf("seed observation: %v", err)
	}
	return &o
}
