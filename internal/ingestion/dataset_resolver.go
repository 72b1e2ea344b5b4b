package ingestion

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

type datasetKey struct {
	Period int
	Type   types.ParentType
}

// DatasetIndex maps (period, parent type) to dataset id for one batch.
type DatasetIndex map[datasetKey]int64

// Lookup returns the dataset id for the row's period and variant, or nil
// when the row has no period.
func (ix DatasetIndex) Lookup(period *int, t types.ParentType) *int64 {
	if period == nil {
		return nil
	}
	id, ok := ix[datasetKey{Period: *period, Type: t}]
	if !ok {
		return nil
	}
	return &id
}

// DatasetResolver maps (period, parent type) to a dataset id, creating the
// dataset on first use. Concurrent resolvers are safe: creation is an
// insert that ignores name conflicts followed by a read by name.
type DatasetResolver struct {
	repo     repos.DatasetRepo
	source   string
	sourceID *int64
	log      *logger.Logger

	mu    sync.Mutex
	cache map[string]int64
}

// NewDatasetResolver builds a resolver. An empty source uses each variant's
// default source code.
func NewDatasetResolver(repo repos.DatasetRepo, source string, sourceID *int64, baseLog *logger.Logger) *DatasetResolver {
	return &DatasetResolver{
		repo:     repo,
		source:   strings.ToUpper(strings.TrimSpace(source)),
		sourceID: sourceID,
		log:      baseLog.With("service", "DatasetResolver"),
		cache:    map[string]int64{},
	}
}

func (r *DatasetResolver) sourceFor(v types.Variant) string {
	if r.source != "" {
		return r.source
	}
	return v.DefaultSource
}

// Resolve returns the id of the dataset named "<SOURCE>_<TYPE>_<PERIOD>".
func (r *DatasetResolver) Resolve(ctx context.Context, period int, t types.ParentType) (int64, error) {
	v, ok := types.Lookup(t)
	if !ok {
		return 0, fmt.Errorf("%w: %q", types.ErrUnknownParentType, t)
	}
	row := types.NewDataset(r.sourceFor(v), t, period, r.sourceID)

	r.mu.Lock()
	id, hit := r.cache[row.Name]
	r.mu.Unlock()
	if hit {
		return id, nil
	}

	dbc := dbctx.New(ctx)
	existing, err := r.repo.GetByName(dbc, row.Name)
	if err != nil {
		return 0, fmt.Errorf("lookup dataset %s: %w", row.Name, err)
	}
	if existing == nil {
		created, err := r.repo.InsertIgnore(dbc, &row)
		if err != nil {
			return 0, fmt.Errorf("create dataset %s: %w", row.Name, err)
		}
		if created {
			r.log.Info("Created dataset", "dataset", row.Name, "period", period, "parent_type", t)
		}
		existing, err = r.repo.GetByName(dbc, row.Name)
		if err != nil {
			return 0, fmt.Errorf("reread dataset %s: %w", row.Name, err)
		}
		if existing == nil {
			return 0, fmt.Errorf("dataset %s missing after insert", row.Name)
		}
	}

	r.mu.Lock()
	r.cache[row.Name] = existing.ID
	r.mu.Unlock()
	return existing.ID, nil
}

// ResolveAll resolves every distinct (period, variant) pair in rows. Rows
// without a period or with an unknown variant are ignored here; the loaders
// report them.
func (r *DatasetResolver) ResolveAll(ctx context.Context, rows []Row) (DatasetIndex, error) {
	seen := map[datasetKey]struct{}{}
	var keys []datasetKey
	for _, row := range rows {
		if row.Period == nil {
			continue
		}
		v, err := row.variant()
		if err != nil {
			continue
		}
		k := datasetKey{Period: *row.Period, Type: v.Type}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Type != keys[j].Type {
			return keys[i].Type < keys[j].Type
		}
		return keys[i].Period < keys[j].Period
	})

	out := make(DatasetIndex, len(keys))
	for _, k := range keys {
		id, err := r.Resolve(ctx, k.Period, k.Type)
		if err != nil {
			return out, err
		}
		out[k] = id
	}
	return out, nil
}
