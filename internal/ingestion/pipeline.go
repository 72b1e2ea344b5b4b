package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/observability"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// Stage names, used for spans, metrics and workflow activities.
const (
	StageDatasets     = "datasets"
	StageParents      = "parents"
	StageObservations = "observations"
)

// Options tune a Pipeline.
type Options struct {
	// Source overrides the per-variant dataset source code.
	Source   string
	SourceID *int64
	// BatchSize bounds rows per INSERT statement.
	BatchSize int
	// StageTimeout, when positive, bounds each stage.
	StageTimeout time.Duration
}

// Batch is one unit of input for a pass.
type Batch struct {
	URI            string
	RunID          string
	LineageGroupID string
	Rows           []Row
}

// Pipeline runs an ingestion pass: dataset resolution, parent load, then
// observation load. Stages commit independently, so a pass interrupted
// between stages leaves valid parents behind and can simply be re-run.
type Pipeline struct {
	resolver     *DatasetResolver
	parents      *ParentLoader
	observations *ObservationLoader
	parentRepo   repos.ParentRecordRepo
	runs         repos.IngestionRunRepo
	metrics      *observability.Metrics
	opts         Options
	log          *logger.Logger
}

func NewPipeline(r repos.Repos, tx db.TxRunner, metrics *observability.Metrics, opts Options, baseLog *logger.Logger) *Pipeline {
	log := baseLog.With("service", "IngestionPipeline")
	return &Pipeline{
		resolver:     NewDatasetResolver(r.Datasets, opts.Source, opts.SourceID, baseLog),
		parents:      NewParentLoader(r.Parents, tx, opts.BatchSize, baseLog),
		observations: NewObservationLoader(r.Observations, tx, opts.BatchSize, baseLog),
		parentRepo:   r.Parents,
		runs:         r.Runs,
		metrics:      metrics,
		opts:         opts,
		log:          log,
	}
}

func (p *Pipeline) Resolver() *DatasetResolver { return p.resolver }

func (p *Pipeline) Source() string { return p.opts.Source }

// Prepare fills run and lineage ids on rows that lack them and returns the
// batch run id.
func (p *Pipeline) Prepare(b *Batch) string {
	if strings.TrimSpace(b.RunID) == "" {
		b.RunID = uuid.NewString()
	}
	if strings.TrimSpace(b.LineageGroupID) == "" {
		b.LineageGroupID = b.RunID
	}
	for i := range b.Rows {
		if b.Rows[i].RunID == "" {
			b.Rows[i].RunID = b.RunID
		}
		if b.Rows[i].LineageGroupID == "" {
			b.Rows[i].LineageGroupID = b.LineageGroupID
		}
	}
	return b.RunID
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if p.opts.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.StageTimeout)
		defer cancel()
	}
	ctx, span := observability.StartSpan(ctx, "ingest."+name, attribute.String("ingest.stage", name))
	start := time.Now()
	err := fn(ctx)
	p.metrics.ObserveStage(name, time.Since(start))
	observability.EndSpan(span, err)
	return err
}

// LoadParents resolves datasets and inserts the batch's parent records.
func (p *Pipeline) LoadParents(ctx context.Context, b Batch) (ParentLoadResult, DatasetIndex, error) {
	var (
		datasets DatasetIndex
		res      ParentLoadResult
	)
	err := p.stage(ctx, StageDatasets, func(ctx context.Context) error {
		var err error
		datasets, err = p.resolver.ResolveAll(ctx, b.Rows)
		return err
	})
	if err != nil {
		return newParentLoadResult(), datasets, fmt.Errorf("resolve datasets: %w", err)
	}
	err = p.stage(ctx, StageParents, func(ctx context.Context) error {
		var err error
		res, err = p.parents.Load(ctx, b.Rows, datasets)
		return err
	})
	for t, n := range res.Inserted {
		p.metrics.ObserveParentsInserted(string(t), n)
	}
	return res, datasets, err
}

// LoadObservations resolves parents from the store and inserts the batch's
// observations. It is safe to call without LoadParents in the same process;
// dataset resolution is idempotent.
func (p *Pipeline) LoadObservations(ctx context.Context, b Batch, datasets DatasetIndex) (ObservationLoadResult, error) {
	if datasets == nil {
		var err error
		datasets, err = p.resolver.ResolveAll(ctx, b.Rows)
		if err != nil {
			return ObservationLoadResult{Skipped: newSkipReport()}, fmt.Errorf("resolve datasets: %w", err)
		}
	}
	res := ObservationLoadResult{Skipped: newSkipReport()}
	err := p.stage(ctx, StageObservations, func(ctx context.Context) error {
		index, err := BuildParentIndex(ctx, p.parentRepo, b.Rows)
		if err != nil {
			return fmt.Errorf("build parent index: %w", err)
		}
		res, err = p.observations.Load(ctx, b.Rows, index, datasets)
		return err
	})
	p.metrics.ObserveObservationsInserted(res.Inserted)
	observability.ReportSkips(ctx, p.log, p.metrics, StageObservations, res.Skipped.counts(), map[string]any{
		"source":    p.opts.Source,
		"batch_uri": b.URI,
		"run_id":    b.RunID,
	})
	return res, err
}

// Run executes a full pass and records it in ingestion_run. A failed pass
// returns the partial result alongside the error.
func (p *Pipeline) Run(ctx context.Context, b Batch) (LoadResult, error) {
	runID := p.Prepare(&b)
	out := p.NewLoadResult(b)
	ctx, span := observability.StartSpan(ctx, "ingest.pass",
		attribute.String("ingest.run_id", runID),
		attribute.Int("ingest.rows", len(b.Rows)),
	)
	p.StartRun(ctx, b)
	err := p.run(ctx, b, &out)
	p.FinishRun(ctx, b.URI, out, err)
	observability.EndSpan(span, err)
	return out, err
}

// StartRun records the start of a pass in ingestion_run. Failures are
// logged and otherwise ignored.
func (p *Pipeline) StartRun(ctx context.Context, b Batch) {
	if err := p.runs.Start(dbctx.New(ctx), &types.IngestionRun{RunID: b.RunID, Source: p.opts.Source, BatchURI: b.URI}); err != nil {
		p.log.Warn("Could not record ingestion run start", "run_id", b.RunID, "error", err)
	}
}

// FinishRun records the outcome of a pass and logs its summary.
func (p *Pipeline) FinishRun(ctx context.Context, uri string, out LoadResult, runErr error) {
	log := p.log.With("run_id", out.RunID, "batch_uri", uri)
	status := types.RunSucceeded
	if runErr != nil {
		status = types.RunFailed
	}
	p.metrics.ObservePass(string(status))
	// The run row must outlive a cancelled pass context.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if ferr := p.runs.Finish(dbctx.New(finishCtx), out.RunID, status, out, runErr); ferr != nil {
		log.Warn("Could not record ingestion run finish", "error", ferr)
	}

	if runErr != nil {
		log.Error("Ingestion pass failed", "error", runErr, "parents_inserted", out.ParentsInserted, "observations_inserted", out.ObservationsInserted)
		return
	}
	log.Info("Ingestion pass complete",
		"rows", out.Rows,
		"parents_inserted", out.ParentsInserted,
		"observations_inserted", out.ObservationsInserted,
		"dropped", out.Skipped.Dropped(),
		"duplicate", out.Skipped.Duplicate,
	)
}

// NewLoadResult returns an empty result for a pass over b.
func (p *Pipeline) NewLoadResult(b Batch) LoadResult {
	return LoadResult{
		RunID:           b.RunID,
		Source:          p.opts.Source,
		Rows:            len(b.Rows),
		ParentsInserted: map[types.ParentType]int64{},
		Skipped:         newSkipReport(),
	}
}

func (p *Pipeline) run(ctx context.Context, b Batch, out *LoadResult) error {
	parents, datasets, err := p.LoadParents(ctx, b)
	out.ParentsInserted = parents.Inserted
	if len(parents.MissingKey) > 0 {
		out.ParentsMissingKey = parents.MissingKey
	}
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pass aborted after parent load: %w", err)
	}
	obs, err := p.LoadObservations(ctx, b, datasets)
	out.ObservationsInserted = obs.Inserted
	out.Skipped = obs.Skipped
	return err
}
