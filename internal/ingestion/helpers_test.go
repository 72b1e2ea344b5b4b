package ingestion

import (
	"testing"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos/testutil"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/observability"
)

func ptr[T any](v T) *T { return &v }

type harness struct {
	svc      *db.Service
	repos    repos.Repos
	pipeline *Pipeline
	metrics  *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	svc := testutil.Service(t)
	log := testutil.Logger(t)
	r := repos.New(svc.DB(), log)
	m := observability.NewMetrics()
	p := NewPipeline(r, db.NewGormTxRunner(svc.DB()), m, Options{Source: "USDA", BatchSize: 2}, log)
	return &harness{svc: svc, repos: r, pipeline: p, metrics: m}
}

func censusRow(geo string, period int, commodity, param, unit int64, value float64) Row {
	return Row{
		SourceVariant: string(types.ParentCensus),
		GeographyID:   geo,
		Period:        ptr(period),
		CommodityCode: ptr(commodity),
		ParameterID:   ptr(param),
		UnitID:        ptr(unit),
		Value:         ptr(value),
	}
}

func labRow(t types.ParentType, key string, resource, param, unit int64, value float64) Row {
	return Row{
		SourceVariant: string(t),
		RecordKey:     key,
		ResourceID:    ptr(resource),
		GeographyID:   testutil.GeoFresno,
		Period:        ptr(2024),
		ParameterID:   ptr(param),
		UnitID:        ptr(unit),
		Value:         ptr(value),
	}
}

func countRows(t *testing.T, h *harness, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := h.svc.DB().Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}
