package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// ObservationLoader turns rows into observations against their resolved
// parents. Tier 1 (stored keys) and tier 2 (in-batch keys) only trim work;
// the conflict-tolerant insert (tier 3) is what guarantees uniqueness.
type ObservationLoader struct {
	repo      repos.ObservationRepo
	tx        db.TxRunner
	batchSize int
	log       *logger.Logger
}

func NewObservationLoader(repo repos.ObservationRepo, tx db.TxRunner, batchSize int, baseLog *logger.Logger) *ObservationLoader {
	return &ObservationLoader{repo: repo, tx: tx, batchSize: batchSize, log: baseLog.With("service", "ObservationLoader")}
}

// Load validates rows, resolves their parents through parents, and inserts
// the new observations in one transaction. The inserted count is the one the
// store reports, not the candidate count.
func (l *ObservationLoader) Load(ctx context.Context, rows []Row, parents ParentIndex, datasets DatasetIndex) (ObservationLoadResult, error) {
	res := ObservationLoadResult{Skipped: newSkipReport()}

	candidates := make([]types.Observation, 0, len(rows))
	refs := map[types.ParentType]map[string]struct{}{}
	for _, row := range rows {
		if strings.TrimSpace(row.SourceVariant) == "" {
			res.Skipped.missing(FieldSourceVariant)
			continue
		}
		v, err := row.variant()
		if err != nil {
			res.Skipped.UnknownVariant++
			continue
		}
		if field := row.missingObservationField(v); field != "" {
			res.Skipped.missing(field)
			continue
		}
		ref, ok := parents.Reference(row, v)
		if !ok {
			res.Skipped.UnresolvedParent++
			continue
		}
		addToSet(refs, v.Type, ref)
		candidates = append(candidates, types.Observation{
			ParentReference: ref,
			ParentType:      v.Type,
			ParameterID:     *row.ParameterID,
			UnitID:          *row.UnitID,
			Value:           *row.Value,
			DatasetID:       datasets.Lookup(row.Period, v.Type),
			DimensionTypeID: row.DimensionTypeID,
			DimensionValue:  row.DimensionValue,
			DimensionUnitID: row.DimensionUnitID,
			RunID:           row.RunID,
			LineageGroupID:  row.LineageGroupID,
		})
	}
	if len(candidates) == 0 {
		return res, nil
	}

	err := l.tx.InTx(ctx, func(dbc dbctx.Context) error {
		existing := map[types.ObservationKey]struct{}{}
		for _, v := range types.Variants() {
			set, ok := refs[v.Type]
			if !ok {
				continue
			}
			keys, err := l.repo.ExistingKeys(dbc, v.Type, sortedStrings(set))
			if err != nil {
				return fmt.Errorf("existing observation keys for %s: %w", v.Type, err)
			}
			for k := range keys {
				existing[k] = struct{}{}
			}
		}

		seen := make(map[types.ObservationKey]struct{}, len(candidates))
		fresh := make([]types.Observation, 0, len(candidates))
		for _, o := range candidates {
			k := o.Key()
			if _, ok := existing[k]; ok {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			fresh = append(fresh, o)
		}
		res.Skipped.Duplicate = len(candidates) - len(fresh)
		if len(fresh) == 0 {
			return nil
		}

		n, err := l.repo.InsertIgnore(dbc, fresh, l.batchSize)
		if err != nil {
			return err
		}
		res.Inserted = n
		res.Skipped.Duplicate += len(fresh) - int(n)
		return nil
	})
	if err != nil {
		res.Inserted = 0
		l.log.Error("Observation load failed", "class", db.Classify(err), "error", err)
		return res, fmt.Errorf("load observations: %w", err)
	}
	l.log.Debug("Loaded observations", "rows", len(rows), "candidates", len(candidates), "inserted", res.Inserted, "duplicate", res.Skipped.Duplicate)
	return res, nil
}
