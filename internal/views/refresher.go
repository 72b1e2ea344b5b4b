package views

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/observability"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// Locker serializes refreshes across processes. Unlock must be called with
// a context that is still live.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, err error)
}

// Notifier receives a RefreshResult after each successful refresh.
type Notifier interface {
	Publish(ctx context.Context, v interface{}) error
}

const refreshLockKey = "biositing:views:refresh"

// RefreshResult reports one view refresh.
type RefreshResult struct {
	View      string        `json:"view"`
	Rows      int64         `json:"rows"`
	Watermark int64         `json:"observation_watermark"`
	Duration  time.Duration `json:"duration"`
}

// Refresher materializes registered views in dependency order.
type Refresher struct {
	db       *gorm.DB
	registry *Registry
	builder  Builder
	mat      materializer
	state    stateStore
	locker   Locker
	lockTTL  time.Duration
	notifier Notifier
	metrics  *observability.Metrics
	log      *logger.Logger
}

type RefresherOption func(*Refresher)

// WithLocker guards every refresh request with l.
func WithLocker(l Locker, ttl time.Duration) RefresherOption {
	return func(r *Refresher) {
		r.locker = l
		r.lockTTL = ttl
	}
}

func WithNotifier(n Notifier) RefresherOption {
	return func(r *Refresher) { r.notifier = n }
}

func WithMetrics(m *observability.Metrics) RefresherOption {
	return func(r *Refresher) { r.metrics = m }
}

func NewRefresher(gdb *gorm.DB, registry *Registry, baseLog *logger.Logger, opts ...RefresherOption) *Refresher {
	dialect := db.DialectOf(gdb)
	r := &Refresher{
		db:       gdb,
		registry: registry,
		builder:  NewBuilder(dialect),
		mat:      materializerFor(dialect),
		state:    stateStore{db: gdb},
		lockTTL:  5 * time.Minute,
		log:      baseLog.With("service", "ViewRefresher"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Refresher) Registry() *Registry { return r.registry }

// Ensure creates the state table and an empty materialization for every
// view that lacks one.
func (r *Refresher) Ensure(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&RefreshState{}); err != nil {
		return fmt.Errorf("migrate view state: %w", err)
	}
	order, err := r.registry.Order()
	if err != nil {
		return err
	}
	for _, name := range order {
		d, _ := r.registry.Get(name)
		q, err := r.builder.Query(d)
		if err != nil {
			return err
		}
		if err := r.mat.ensure(r.db.WithContext(ctx), name, q); err != nil {
			return fmt.Errorf("ensure view %s: %w", name, err)
		}
	}
	return nil
}

// Rebuild drops and recreates every materialization, for definition changes.
func (r *Refresher) Rebuild(ctx context.Context) error {
	order, err := r.registry.Order()
	if err != nil {
		return err
	}
	for i := len(order) - 1; i >= 0; i-- {
		if err := r.mat.drop(r.db.WithContext(ctx), order[i]); err != nil {
			return fmt.Errorf("drop view %s: %w", order[i], err)
		}
	}
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&RefreshState{}).Error; err != nil {
		return fmt.Errorf("reset view state: %w", err)
	}
	return r.Ensure(ctx)
}

// RefreshAll refreshes every registered view in dependency order.
func (r *Refresher) RefreshAll(ctx context.Context) ([]RefreshResult, error) {
	order, err := r.registry.Order()
	if err != nil {
		return nil, err
	}
	return r.refreshSequence(ctx, order)
}

// RefreshOrder refreshes exactly names, in the given order. The order is
// validated before anything runs.
func (r *Refresher) RefreshOrder(ctx context.Context, names []string) ([]RefreshResult, error) {
	if err := r.registry.ValidateOrder(names); err != nil {
		return nil, err
	}
	return r.refreshSequence(ctx, names)
}

func (r *Refresher) refreshSequence(ctx context.Context, names []string) ([]RefreshResult, error) {
	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, refreshLockKey, r.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire refresh lock: %w", err)
		}
		defer func() {
			if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
				r.log.Warn("Releasing refresh lock failed", "error", uerr)
			}
		}()
	}
	out := make([]RefreshResult, 0, len(names))
	// Sources refreshed earlier in this sequence are as fresh as the request
	// can make them; writes landing after that do not fail their dependents.
	refreshed := make(map[string]bool, len(names))
	for _, name := range names {
		res, err := r.refreshOne(ctx, name, refreshed)
		if err != nil {
			return out, err
		}
		refreshed[name] = true
		out = append(out, res)
	}
	return out, nil
}

// parentTypes lists the observation discriminators a view reads, following
// aggregates back to their source.
func (r *Refresher) parentTypes(d Def) []string {
	if d.Kind == KindAggregate {
		var out []string
		for _, dep := range d.Deps() {
			if src, ok := r.registry.Get(dep); ok {
				out = append(out, r.parentTypes(src)...)
			}
		}
		return out
	}
	vs := types.FamilyVariants(d.Family)
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, string(v.Type))
	}
	return out
}

func (r *Refresher) refreshOne(ctx context.Context, name string, refreshed map[string]bool) (res RefreshResult, err error) {
	d, ok := r.registry.Get(name)
	if !ok {
		return res, fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
	query, err := r.builder.Query(d)
	if err != nil {
		return res, err
	}

	ctx, span := observability.StartSpan(ctx, "views.refresh", attribute.String("view.name", name), attribute.String("view.kind", d.Kind.String()))
	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		r.metrics.ObserveViewRefresh(name, res.Duration, res.Rows, err)
		observability.EndSpan(span, err)
	}()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		watermark, err := r.dependencyWatermark(dbc, d, refreshed)
		if err != nil {
			return err
		}
		if err := r.mat.refresh(tx, name, query); err != nil {
			return fmt.Errorf("refresh %s: %w", name, err)
		}
		var rows int64
		if err := tx.Table(name).Count(&rows).Error; err != nil {
			return fmt.Errorf("count %s: %w", name, err)
		}
		res = RefreshResult{View: name, Rows: rows, Watermark: watermark}
		return r.state.put(dbc, RefreshState{
			ViewName:             name,
			RefreshedAt:          time.Now().UTC(),
			RowCount:             rows,
			ObservationWatermark: watermark,
		})
	})
	if err != nil {
		r.log.Error("View refresh failed", "view", name, "error", err)
		return res, err
	}
	r.log.Info("View refreshed", "view", name, "rows", res.Rows, "observation_watermark", res.Watermark)
	if r.notifier != nil {
		res.Duration = time.Since(start)
		if perr := r.notifier.Publish(ctx, res); perr != nil {
			r.log.Warn("Publishing refresh event failed", "view", name, "error", perr)
		}
	}
	return res, nil
}

// dependencyWatermark checks d's sources and returns the watermark d will
// record. Base views take the current watermark of their own parent types;
// views over other views inherit the oldest watermark among their sources.
func (r *Refresher) dependencyWatermark(dbc dbctx.Context, d Def, refreshed map[string]bool) (int64, error) {
	deps := d.Deps()
	if len(deps) == 0 {
		return observationWatermark(dbc, r.parentTypes(d))
	}
	var watermark int64 = -1
	for _, dep := range deps {
		st, err := r.state.get(dbc, dep)
		if err != nil {
			return 0, err
		}
		if st == nil {
			return 0, dependencyError("%s reads %s, which has never been materialized", d.Name, dep)
		}
		if !refreshed[dep] {
			src, _ := r.registry.Get(dep)
			current, err := observationWatermark(dbc, r.parentTypes(src))
			if err != nil {
				return 0, err
			}
			if st.ObservationWatermark < current {
				return 0, dependencyError("%s reads %s, which is stale (watermark %d < %d)", d.Name, dep, st.ObservationWatermark, current)
			}
		}
		if watermark < 0 || st.ObservationWatermark < watermark {
			watermark = st.ObservationWatermark
		}
	}
	return watermark, nil
}

// observationWatermark is MAX(observation.id) over the given parent types.
func observationWatermark(dbc dbctx.Context, parentTypes []string) (int64, error) {
	var max int64
	if len(parentTypes) == 0 {
		return 0, nil
	}
	err := dbc.Tx.Table("observation").
		Where("parent_type IN ?", parentTypes).
		Select("COALESCE(MAX(id), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("observation watermark: %w", err)
	}
	return max, nil
}

// State lists the last refresh of every materialized view.
func (r *Refresher) State(ctx context.Context) ([]RefreshState, error) {
	return r.state.list(dbctx.New(ctx))
}
