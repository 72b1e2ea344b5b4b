package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos/observations"
	httpx "github.com/uw-ssec/ca-biositing-sub000/internal/http"
	httpH "github.com/uw-ssec/ca-biositing-sub000/internal/http/handlers"
	"github.com/uw-ssec/ca-biositing-sub000/internal/ingestion"
	"github.com/uw-ssec/ca-biositing-sub000/internal/observability"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/batchsource"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/redis"
	"github.com/uw-ssec/ca-biositing-sub000/internal/temporalx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/temporalx/ingestwf"
	"github.com/uw-ssec/ca-biositing-sub000/internal/views"
)

type App struct {
	Log       *logger.Logger
	Cfg       Config
	Store     *db.Service
	Repos     repos.Repos
	Metrics   *observability.Metrics
	Opener    *batchsource.Opener
	Pipeline  *ingestion.Pipeline
	Refresher *views.Refresher

	redis        *goredis.Client
	temporal     temporalsdkclient.Client
	otelShutdown func(context.Context) error
}

// New opens the store, migrates it, and wires every component. Redis is
// optional; without it view refreshes are not serialized across processes.
func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	a := &App{Log: log, Cfg: cfg, Metrics: observability.NewMetrics()}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)

	store, err := db.Open(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.Store = store
	if err := store.AutoMigrateAll(); err != nil {
		a.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	a.Repos = repos.New(store.DB(), log)
	a.Opener = batchsource.NewOpener(cfg.Sources, log)
	a.Pipeline = ingestion.NewPipeline(a.Repos, db.NewGormTxRunner(store.DB()), a.Metrics, ingestion.Options{
		Source:       cfg.Ingest.Source,
		SourceID:     cfg.Ingest.SourceID,
		BatchSize:    cfg.Ingest.BatchSize,
		StageTimeout: cfg.Ingest.StageTimeout,
	}, log)

	opts := []views.RefresherOption{views.WithMetrics(a.Metrics)}
	if cfg.Redis.Enabled() {
		rdb, err := redis.Dial(ctx, cfg.Redis, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.redis = rdb
		opts = append(opts,
			views.WithLocker(redis.NewLock(rdb, log), cfg.Views.LockTTL),
			views.WithNotifier(redis.NewPublisher(rdb, cfg.Redis.Channel, log)),
		)
	}
	registry, err := views.DefaultRegistry()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Refresher = views.NewRefresher(store.DB(), registry, log, opts...)
	if err := a.Refresher.Ensure(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ensure views: %w", err)
	}
	return a, nil
}

// Temporal dials lazily; commands that never touch workflows never dial.
func (a *App) Temporal(ctx context.Context) (temporalsdkclient.Client, error) {
	if a.temporal != nil {
		return a.temporal, nil
	}
	tc, err := temporalx.NewClient(ctx, a.Cfg.Temporal, a.Log)
	if err != nil {
		return nil, err
	}
	if tc == nil {
		return nil, fmt.Errorf("temporal is not configured")
	}
	a.temporal = tc
	return tc, nil
}

func (a *App) Activities() *ingestwf.Activities {
	return &ingestwf.Activities{Log: a.Log, Opener: a.Opener, Pipeline: a.Pipeline, Refresher: a.Refresher}
}

// IngestFile runs one full pass over the batch at uri.
func (a *App) IngestFile(ctx context.Context, uri string) (ingestion.LoadResult, error) {
	rc, err := a.Opener.Open(ctx, uri)
	if err != nil {
		return ingestion.LoadResult{}, err
	}
	defer rc.Close()
	rows, err := ingestion.ReadRows(rc)
	if err != nil {
		return ingestion.LoadResult{}, fmt.Errorf("read %s: %w", uri, err)
	}
	return a.Pipeline.Run(ctx, ingestion.Batch{URI: uri, Rows: rows})
}

// IngestAll expands uri into batch files and loads them with bounded
// concurrency. Results are in input order; the first error cancels the rest.
func (a *App) IngestAll(ctx context.Context, uri string) ([]ingestion.LoadResult, error) {
	uris, err := a.Opener.List(ctx, uri)
	if err != nil {
		return nil, err
	}
	out := make([]ingestion.LoadResult, len(uris))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Cfg.Ingest.Concurrency)
	for i, u := range uris {
		g.Go(func() error {
			res, err := a.IngestFile(gctx, u)
			out[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	if a.Cfg.Views.RefreshAfterIngest {
		if _, err := a.Refresher.RefreshAll(ctx); err != nil {
			return out, fmt.Errorf("refresh views: %w", err)
		}
	}
	return out, nil
}

// WatchViews streams view refresh events published by any process sharing
// this Redis until ctx ends.
func (a *App) WatchViews(ctx context.Context, onEvent func(payload []byte)) error {
	if a.redis == nil {
		return fmt.Errorf("redis is not configured")
	}
	if err := redis.NewPublisher(a.redis, a.Cfg.Redis.Channel, a.Log).Subscribe(ctx, onEvent); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// OpsServer builds the health, metrics and admin HTTP server.
func (a *App) OpsServer() *httpx.Server {
	return httpx.NewServer(httpx.RouterConfig{
		Log:           a.Log,
		Metrics:       a.Metrics,
		Service:       a.Cfg.Otel.ServiceName,
		CORSOrigins:   a.Cfg.Ops.CORSOrigins,
		HealthHandler: httpH.NewHealthHandler(a.pingers()),
		ViewHandler:   httpH.NewViewHandler(a.Refresher),
		RecordHandler: httpH.NewRecordHandler(observations.NewParentResolver(a.Repos.Parents), a.Repos.Parents, a.Repos.Runs),
	})
}

func (a *App) pingers() map[string]httpH.Pinger {
	checks := map[string]httpH.Pinger{"db": a.Store}
	if a.redis != nil {
		checks["redis"] = redisPinger{a.redis}
	}
	return checks
}

type redisPinger struct{ rdb *goredis.Client }

func (p redisPinger) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.temporal != nil {
		a.temporal.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
