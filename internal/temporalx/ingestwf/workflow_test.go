package ingestwf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos/testutil"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/ingestion"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/batchsource"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/views"
)

const batchJSONL = `{"source_variant":"CENSUS","geography_id":"06001","period":2022,"commodity_code":1,"parameter_id":1,"unit_id":1,"value":1200}
{"source_variant":"CENSUS","geography_id":"06001","period":2022,"commodity_code":1,"parameter_id":2,"unit_id":2,"value":2.1}
{"source_variant":"PROXIMATE","record_key":"P-1","resource_id":1,"parameter_id":3,"unit_id":3,"value":9.5}
{"source_variant":"ULTIMATE","record_key":"U-1","resource_id":2,"parameter_id":4,"unit_id":3,"value":47}
{"source_variant":"CENSUS","geography_id":"06019","period":2022,"commodity_code":2,"parameter_id":1,"unit_id":1}
`

type IngestWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env  *testsuite.TestWorkflowEnvironment
	acts *Activities
	svc  *db.Service
	dir  string
}

func TestIngestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(IngestWorkflowSuite))
}

func (s *IngestWorkflowSuite) SetupTest() {
	t := s.T()
	s.svc = testutil.Service(t)
	log := testutil.Logger(t)
	testutil.SeedLookups(t, context.Background(), s.svc.DB())

	r := repos.New(s.svc.DB(), log)
	reg, err := views.DefaultRegistry()
	s.Require().NoError(err)
	refresher := views.NewRefresher(s.svc.DB(), reg, log)
	s.Require().NoError(refresher.Ensure(context.Background()))

	s.acts = &Activities{
		Log:       log,
		Opener:    batchsource.NewOpener(batchsource.Config{}, log),
		Pipeline:  ingestion.NewPipeline(r, db.NewGormTxRunner(s.svc.DB()), nil, ingestion.Options{Source: "USDA", BatchSize: 2}, log),
		Refresher: refresher,
	}
	s.dir = t.TempDir()
	s.env = s.NewTestWorkflowEnvironment()
	Register(s.env, s.acts)
}

func (s *IngestWorkflowSuite) writeBatch(name, body string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(body), 0o644))
	return path
}

func (s *IngestWorkflowSuite) TestIngestAndRefresh() {
	uri := s.writeBatch("batch.jsonl", batchJSONL)

	s.env.ExecuteWorkflow(IngestWorkflow, IngestInput{URI: uri, RunID: "run-1", RefreshViews: true})
	s.Require().True(s.env.IsWorkflowCompleted())
	s.Require().NoError(s.env.GetWorkflowError())

	var out IngestOutput
	s.Require().NoError(s.env.GetWorkflowResult(&out))
	s.Equal(5, out.Result.Rows)
	s.Equal(int64(2), out.Result.ParentsInserted[types.ParentCensus])
	s.Equal(int64(1), out.Result.ParentsInserted[types.ParentProximate])
	s.Equal(int64(4), out.Result.ObservationsInserted)
	s.Equal(1, out.Result.Skipped.MissingField[ingestion.FieldValue])
	s.Require().Len(out.Refresh, 4)
	s.Equal(views.LabSummaryView, out.Refresh[3].View)

	run, err := repos.New(s.svc.DB(), testutil.Logger(s.T())).Runs.GetByRunID(dbctx.New(context.Background()), "run-1")
	s.Require().NoError(err)
	s.Require().NotNil(run)
	s.Equal(types.RunSucceeded, run.Status)
}

func (s *IngestWorkflowSuite) TestReplayedBatchInsertsNothing() {
	uri := s.writeBatch("batch.jsonl", batchJSONL)

	s.env.ExecuteWorkflow(IngestWorkflow, IngestInput{URI: uri, RunID: "run-1"})
	s.Require().NoError(s.env.GetWorkflowError())

	env := s.NewTestWorkflowEnvironment()
	Register(env, s.acts)
	env.ExecuteWorkflow(IngestWorkflow, IngestInput{URI: uri, RunID: "run-2"})
	s.Require().NoError(env.GetWorkflowError())

	var out IngestOutput
	s.Require().NoError(env.GetWorkflowResult(&out))
	s.Equal(int64(0), out.Result.ObservationsInserted)
	s.Equal(4, out.Result.Skipped.Duplicate)
	for _, n := range out.Result.ParentsInserted {
		s.Equal(int64(0), n)
	}
}

func (s *IngestWorkflowSuite) TestBadBatchIsNotRetried() {
	uri := s.writeBatch("bad.jsonl", "{not json\n")

	s.env.ExecuteWorkflow(IngestWorkflow, IngestInput{URI: uri, RunID: "run-bad"})
	s.Require().True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Require().Error(err)

	var appErr *temporal.ApplicationError
	s.Require().True(errors.As(err, &appErr))
	s.Equal(ErrTypeBadBatch, appErr.Type())

	run, err := repos.New(s.svc.DB(), testutil.Logger(s.T())).Runs.GetByRunID(dbctx.New(context.Background()), "run-bad")
	s.Require().NoError(err)
	s.Require().NotNil(run)
	s.Equal(types.RunFailed, run.Status)
}

func (s *IngestWorkflowSuite) TestObservationFailureFinishesRun() {
	uri := s.writeBatch("batch.jsonl", batchJSONL)
	s.env.OnActivity(ActivityLoadObservations, mock.Anything, mock.Anything).
		Return(ingestion.ObservationLoadResult{}, errors.New("storage unavailable"))
	s.env.OnActivity(ActivityFinishRun, mock.Anything, mock.MatchedBy(func(in FinishInput) bool {
		return strings.Contains(in.Error, "storage unavailable") && in.Result.ParentsInserted[types.ParentCensus] == 2
	})).Return(nil).Once()

	s.env.ExecuteWorkflow(IngestWorkflow, IngestInput{URI: uri, RunID: "run-fail", Attempts: 1})
	s.Require().Error(s.env.GetWorkflowError())
	s.env.AssertExpectations(s.T())
}

func (s *IngestWorkflowSuite) TestPermanentStorageFailureIsNotRetried() {
	uri := s.writeBatch("batch.jsonl", batchJSONL)
	s.Require().NoError(s.svc.DB().Migrator().DropTable("observation"))

	s.env.ExecuteWorkflow(IngestWorkflow, IngestInput{URI: uri, RunID: "run-schema", Attempts: 5})
	s.Require().True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Require().Error(err)

	var appErr *temporal.ApplicationError
	s.Require().True(errors.As(err, &appErr))
	s.Equal(ErrTypeStorage, appErr.Type())
	s.True(appErr.NonRetryable())
}

func TestStorageErrorClassification(t *testing.T) {
	require.NoError(t, storageError(nil))

	transient := fmt.Errorf("insert observations: %w", &pgconn.PgError{Code: "40001"})
	var appErr *temporal.ApplicationError
	require.False(t, errors.As(storageError(transient), &appErr))
	require.ErrorIs(t, storageError(context.DeadlineExceeded), context.DeadlineExceeded)

	permanent := fmt.Errorf("insert observations: %w", &pgconn.PgError{Code: "23502"})
	require.True(t, errors.As(storageError(permanent), &appErr))
	require.Equal(t, ErrTypeStorage, appErr.Type())
	require.True(t, appErr.NonRetryable())
}

func (s *IngestWorkflowSuite) TestMissingURI() {
	s.env.ExecuteWorkflow(IngestWorkflow, IngestInput{})
	s.Require().Error(s.env.GetWorkflowError())
}

func (s *IngestWorkflowSuite) TestRefreshRejectsBadOrder() {
	s.env.ExecuteWorkflow(RefreshViewsWorkflow, RefreshInput{Views: []string{views.LabSummaryView, views.LabView}})
	err := s.env.GetWorkflowError()
	s.Require().Error(err)

	var appErr *temporal.ApplicationError
	s.Require().True(errors.As(err, &appErr))
	s.Equal(ErrTypeViewDependency, appErr.Type())

	states, err := s.acts.Refresher.State(context.Background())
	require.NoError(s.T(), err)
	s.Empty(states)
}
