package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos/testutil"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
)

// staleSnapshotRepo hides stored keys from tier 1, as if another loader
// committed between the snapshot and the insert.
type staleSnapshotRepo struct {
	repos.ObservationRepo
}

func (staleSnapshotRepo) ExistingKeys(dbctx.Context, types.ParentType, []string) (map[types.ObservationKey]struct{}, error) {
	return map[types.ObservationKey]struct{}{}, nil
}

type failingInsertRepo struct {
	repos.ObservationRepo
}

func (failingInsertRepo) InsertIgnore(dbctx.Context, []types.Observation, int) (int64, error) {
	return 0, errors.New("connection reset by peer")
}

func TestObservationLoaderConflictTolerantInsert(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rows := []Row{censusRow(testutil.GeoAlameda, 2022, 1, testutil.ParamAcres, testutil.UnitAcres, 25000)}
	_, err := h.pipeline.Run(ctx, Batch{Rows: rows})
	require.NoError(t, err)

	loader := NewObservationLoader(staleSnapshotRepo{h.repos.Observations}, db.NewGormTxRunner(h.svc.DB()), 0, testutil.Logger(t))
	index, err := BuildParentIndex(ctx, h.repos.Parents, rows)
	require.NoError(t, err)

	res, err := loader.Load(ctx, rows, index, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Inserted, "storage-reported count, not candidates")
	assert.Equal(t, 1, res.Skipped.Duplicate)
	assert.Equal(t, int64(1), countRows(t, h, &types.Observation{}))
}

func TestObservationLoaderOrphan(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	loader := NewObservationLoader(h.repos.Observations, db.NewGormTxRunner(h.svc.DB()), 0, testutil.Logger(t))

	rows := []Row{
		censusRow(testutil.GeoAlameda, 2022, 1, 1, 1, 1),
		labRow(types.ParentCompositional, "CMP-404", 1, 1, 1, 1),
	}
	index, err := BuildParentIndex(ctx, h.repos.Parents, rows)
	require.NoError(t, err)
	assert.Equal(t, 0, index.Size())

	res, err := loader.Load(ctx, rows, index, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped.UnresolvedParent)
	assert.Equal(t, int64(0), res.Inserted)
}

func TestObservationLoaderUnknownVariant(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	loader := NewObservationLoader(h.repos.Observations, db.NewGormTxRunner(h.svc.DB()), 0, testutil.Logger(t))

	rows := []Row{
		labRow("PROXIMATE_V2", "P-1", 1, 1, 1, 1),
		labRow(types.ParentCompositional, "CMP-404", 1, 1, 1, 1),
	}
	index, err := BuildParentIndex(ctx, h.repos.Parents, rows)
	require.NoError(t, err)

	res, err := loader.Load(ctx, rows, index, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped.UnknownVariant)
	assert.Equal(t, 1, res.Skipped.UnresolvedParent)
	assert.Equal(t, 2, res.Skipped.Dropped())
}

func TestRunStorageFailureKeepsParents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	broken := h.repos
	broken.Observations = failingInsertRepo{h.repos.Observations}
	p := NewPipeline(broken, db.NewGormTxRunner(h.svc.DB()), h.metrics, Options{Source: "USDA"}, testutil.Logger(t))

	res, err := p.Run(ctx, Batch{RunID: "run-fail", Rows: []Row{
		censusRow(testutil.GeoAlameda, 2022, 1, 1, 1, 1),
	}})
	require.Error(t, err)
	assert.Equal(t, int64(1), res.ParentsInserted[types.ParentCensus])
	assert.Equal(t, int64(0), res.ObservationsInserted)
	assert.Equal(t, int64(1), countRows(t, h, &types.CensusRecord{}))
	assert.Equal(t, int64(0), countRows(t, h, &types.Observation{}))

	run, err := h.repos.Runs.GetByRunID(dbctx.New(ctx), "run-fail")
	require.NoError(t, err)
	assert.Equal(t, types.RunFailed, run.Status)
	assert.Contains(t, run.Error, "connection reset")

	// The retried pass completes without duplicating the parent.
	res, err = h.pipeline.Run(ctx, Batch{Rows: []Row{censusRow(testutil.GeoAlameda, 2022, 1, 1, 1, 1)}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.ParentsInserted[types.ParentCensus])
	assert.Equal(t, int64(1), res.ObservationsInserted)
}

func TestRunCancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline.Run(ctx, Batch{Rows: []Row{censusRow(testutil.GeoAlameda, 2022, 1, 1, 1, 1)}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int64(0), countRows(t, h, &types.Observation{}))
}
