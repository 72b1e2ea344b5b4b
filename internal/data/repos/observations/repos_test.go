package observations_test

import (
	"context"
	"errors"
	"testing"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos/observations"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos/testutil"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
)

func TestDatasetRepoInsertIgnore(t *testing.T) {
	db := testutil.DB(t)
	repo := observations.NewDatasetRepo(db, testutil.Logger(t))
	dbc := dbctx.Background()

	row := types.NewDataset("USDA", types.ParentCensus, 2022, nil)
	created, err := repo.InsertIgnore(dbc, &row)
	if err != nil || !created {
		t.Fatalf("first InsertIgnore: created=%v err=%v", created, err)
	}
	again := types.NewDataset("USDA", types.ParentCensus, 2022, nil)
	created, err = repo.InsertIgnore(dbc, &again)
	if err != nil {
		t.Fatalf("second InsertIgnore: %v", err)
	}
	if created {
		t.Fatalf("second InsertIgnore should not create a row")
	}
	got, err := repo.GetByName(dbc, "USDA_CENSUS_2022")
	if err != nil || got == nil {
		t.Fatalf("GetByName: %v %v", got, err)
	}
	if got.ID != row.ID {
		t.Fatalf("GetByName id=%d want %d", got.ID, row.ID)
	}
	missing, err := repo.GetByName(dbc, "USDA_CENSUS_1999")
	if err != nil || missing != nil {
		t.Fatalf("GetByName missing: %v %v", missing, err)
	}
}

func TestParentRecordRepoInsertIgnoreAndKeys(t *testing.T) {
	db := testutil.DB(t)
	repo := observations.NewParentRecordRepo(db, testutil.Logger(t))
	dbc := dbctx.Background()

	rows := []types.CensusRecord{
		{GeographyID: testutil.GeoAlameda, Period: 2022, CommodityCode: 1},
		{GeographyID: testutil.GeoFresno, Period: 2022, CommodityCode: 1},
	}
	n, err := repo.InsertIgnore(dbc, types.ParentCensus, rows, 0)
	if err != nil || n != 2 {
		t.Fatalf("InsertIgnore: n=%d err=%v", n, err)
	}
	dup := []types.CensusRecord{
		{GeographyID: testutil.GeoAlameda, Period: 2022, CommodityCode: 1},
		{GeographyID: testutil.GeoAlameda, Period: 2023, CommodityCode: 1},
	}
	n, err = repo.InsertIgnore(dbc, types.ParentCensus, dup, 0)
	if err != nil || n != 1 {
		t.Fatalf("InsertIgnore with conflict: n=%d err=%v", n, err)
	}

	keys, err := repo.NaturalKeys(dbc, types.ParentCensus, []int{2022})
	if err != nil {
		t.Fatalf("NaturalKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("NaturalKeys len=%d want 2", len(keys))
	}

	if _, err := repo.InsertIgnore(dbc, types.ParentSurvey, rows, 0); err == nil {
		t.Fatalf("expected error for census rows passed as survey")
	}
	if _, err := repo.RecordKeys(dbc, types.ParentCensus, []string{"x"}); err == nil {
		t.Fatalf("expected error for record keys on a natural-key variant")
	}
}

func TestParentRecordRepoLatest(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	repo := observations.NewParentRecordRepo(db, testutil.Logger(t))

	testutil.SeedCensus(t, ctx, db, testutil.GeoAlameda, 2022, 1)
	newer := testutil.SeedCensus(t, ctx, db, testutil.GeoAlameda, 2023, 1)
	testutil.SeedCensus(t, ctx, db, testutil.GeoFresno, 2024, 1)

	h, err := repo.Latest(dbctx.New(ctx), types.ParentCensus, testutil.GeoAlameda, 1)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if h.ID != newer.ID || h.Period == nil || *h.Period != 2023 {
		t.Fatalf("Latest returned %+v, want id %d period 2023", h, newer.ID)
	}

	_, err = repo.Latest(dbctx.New(ctx), types.ParentSurvey, testutil.GeoAlameda, 1)
	if !errors.Is(err, types.ErrParentNotFound) {
		t.Fatalf("Latest on empty variant: %v", err)
	}
}

func TestParentResolver(t *testing.T) {
	ctx := context.Background()
	db := testutil.DB(t)
	parents := observations.NewParentRecordRepo(db, testutil.Logger(t))
	resolver := observations.NewParentResolver(parents)

	census := testutil.SeedCensus(t, ctx, db, testutil.GeoAlameda, 2022, 1)
	res := testutil.ResourceRiceStraw
	if _, err := parents.InsertIgnore(dbctx.New(ctx), types.ParentProximate,
		[]types.ProximateRecord{{LabRecord: types.LabRecord{RecordKey: "PRX-1", ResourceID: &res}}}, 0); err != nil {
		t.Fatalf("insert proximate: %v", err)
	}

	h, err := resolver.Resolve(ctx, types.ParentCensus, types.IDReference(census.ID))
	if err != nil || h.ID != census.ID || h.GeographyID != testutil.GeoAlameda {
		t.Fatalf("Resolve census: %+v %v", h, err)
	}
	h, err = resolver.Resolve(ctx, types.ParentProximate, "PRX-1")
	if err != nil || h.RecordKey != "PRX-1" || h.ResourceID == nil || *h.ResourceID != res {
		t.Fatalf("Resolve proximate: %+v %v", h, err)
	}
	if _, err := resolver.Resolve(ctx, types.ParentUltimate, "PRX-1"); !errors.Is(err, types.ErrParentNotFound) {
		t.Fatalf("Resolve wrong subtype: %v", err)
	}
	if _, err := resolver.Resolve(ctx, types.ParentCensus, "not-an-id"); !errors.Is(err, types.ErrParentNotFound) {
		t.Fatalf("Resolve bad id: %v", err)
	}
	if _, err := resolver.Resolve(ctx, "ASSAY", "1"); !errors.Is(err, types.ErrUnknownParentType) {
		t.Fatalf("Resolve unknown type: %v", err)
	}
}

func TestObservationRepoInsertIgnore(t *testing.T) {
	db := testutil.DB(t)
	repo := observations.NewObservationRepo(db, testutil.Logger(t))
	dbc := dbctx.Background()

	rows := []types.Observation{
		{ParentReference: "1", ParentType: types.ParentCensus, ParameterID: 1, UnitID: 1, Value: 25000},
		{ParentReference: "1", ParentType: types.ParentCensus, ParameterID: 2, UnitID: 2, Value: 3.1},
	}
	n, err := repo.InsertIgnore(dbc, rows, 0)
	if err != nil || n != 2 {
		t.Fatalf("InsertIgnore: n=%d err=%v", n, err)
	}
	again := []types.Observation{
		{ParentReference: "1", ParentType: types.ParentCensus, ParameterID: 1, UnitID: 1, Value: 99},
		{ParentReference: "1", ParentType: types.ParentSurvey, ParameterID: 1, UnitID: 1, Value: 12},
	}
	n, err = repo.InsertIgnore(dbc, again, 0)
	if err != nil || n != 1 {
		t.Fatalf("InsertIgnore conflict: n=%d err=%v", n, err)
	}

	keys, err := repo.ExistingKeys(dbc, types.ParentCensus, []string{"1", "2"})
	if err != nil {
		t.Fatalf("ExistingKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("ExistingKeys len=%d want 2", len(keys))
	}
	if _, ok := keys[types.ObservationKey{ParentReference: "1", ParentType: types.ParentCensus, ParameterID: 1, UnitID: 1}]; !ok {
		t.Fatalf("missing census key")
	}

	max, err := repo.MaxID(dbc)
	if err != nil || max == 0 {
		t.Fatalf("MaxID: %d %v", max, err)
	}
	count, err := repo.Count(dbc)
	if err != nil || count != 3 {
		t.Fatalf("Count: %d %v", count, err)
	}
}

func TestIngestionRunRepo(t *testing.T) {
	db := testutil.DB(t)
	repo := observations.NewIngestionRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Background()

	if err := repo.Start(dbc, &types.IngestionRun{RunID: "run-1", Source: "USDA"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := repo.Finish(dbc, "run-1", types.RunFailed, map[string]int{"inserted": 3}, errors.New("boom")); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	got, err := repo.GetByRunID(dbc, "run-1")
	if err != nil {
		t.Fatalf("GetByRunID: %v", err)
	}
	if got.Status != types.RunFailed || got.Error != "boom" || got.FinishedAt == nil {
		t.Fatalf("unexpected run: %+v", got)
	}
	missing, err := repo.GetByRunID(dbc, "no-such-run")
	if err != nil || missing != nil {
		t.Fatalf("missing run: got %+v, %v", missing, err)
	}
}
