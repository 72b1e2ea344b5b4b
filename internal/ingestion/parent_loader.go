package ingestion

import (
	"context"
	"fmt"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos"
	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// ParentLoader inserts the parent records a batch refers to. Each variant
// is deduplicated against the store (tier 1) and within the batch (tier 2)
// and then written in one conflict-tolerant bulk insert (tier 3) inside its
// own transaction.
type ParentLoader struct {
	repo      repos.ParentRecordRepo
	tx        db.TxRunner
	batchSize int
	log       *logger.Logger
}

func NewParentLoader(repo repos.ParentRecordRepo, tx db.TxRunner, batchSize int, baseLog *logger.Logger) *ParentLoader {
	return &ParentLoader{repo: repo, tx: tx, batchSize: batchSize, log: baseLog.With("service", "ParentLoader")}
}

// Load inserts new parents for rows. On a storage failure the failing
// variant is rolled back, variants already written stay committed, and the
// partial result is returned with the error.
func (l *ParentLoader) Load(ctx context.Context, rows []Row, datasets DatasetIndex) (ParentLoadResult, error) {
	res := newParentLoadResult()
	byVariant := map[types.ParentType][]Row{}
	for _, row := range rows {
		v, err := row.variant()
		if err != nil {
			continue
		}
		byVariant[v.Type] = append(byVariant[v.Type], row)
	}

	for _, v := range types.Variants() {
		vrows := byVariant[v.Type]
		if len(vrows) == 0 {
			continue
		}
		var (
			n   int64
			err error
		)
		if v.Key == types.KeyRecord {
			n, err = l.loadRecordKeyed(ctx, v, vrows, datasets, &res)
		} else {
			n, err = l.loadNaturalKeyed(ctx, v, vrows, datasets, &res)
		}
		if err != nil {
			l.log.Error("Parent load failed", "variant", v.Type, "class", db.Classify(err), "error", err)
			return res, fmt.Errorf("load %s parents: %w", v.Type, err)
		}
		res.Inserted[v.Type] = n
		l.log.Debug("Loaded parents", "variant", v.Type, "rows", len(vrows), "candidates", res.Candidates[v.Type], "inserted", n)
	}
	return res, nil
}

func (l *ParentLoader) loadNaturalKeyed(ctx context.Context, v types.Variant, rows []Row, datasets DatasetIndex, res *ParentLoadResult) (int64, error) {
	periods := map[int]struct{}{}
	for _, row := range rows {
		if row.Period != nil {
			periods[*row.Period] = struct{}{}
		}
	}

	var inserted int64
	err := l.tx.InTx(ctx, func(dbc dbctx.Context) error {
		existing, err := l.repo.NaturalKeys(dbc, v.Type, sortedInts(periods))
		if err != nil {
			return err
		}
		seen := make(map[types.NaturalKey]struct{}, len(rows))
		var census []types.CensusRecord
		var survey []types.SurveyRecord
		for _, row := range rows {
			key, field, ok := row.naturalKey()
			if !ok {
				res.MissingKey[field]++
				continue
			}
			if _, ok := existing[key]; ok {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			prov := provenance(row, datasets.Lookup(row.Period, v.Type))
			switch v.Type {
			case types.ParentCensus:
				census = append(census, types.CensusRecord{
					GeographyID: key.GeographyID, Period: key.Period, CommodityCode: key.CommodityCode, Provenance: prov,
				})
			case types.ParentSurvey:
				survey = append(survey, types.SurveyRecord{
					GeographyID: key.GeographyID, Period: key.Period, CommodityCode: key.CommodityCode,
					SurveyProgramID: row.SurveyProgramID, SurveyPeriod: row.SurveyPeriod,
					ReferenceMonth: row.ReferenceMonth, SeasonalFlag: row.SeasonalFlag,
					Provenance: prov,
				})
			default:
				return fmt.Errorf("no natural-key model for %s", v.Type)
			}
		}
		res.Candidates[v.Type] = len(seen)
		if len(seen) == 0 {
			return nil
		}
		var payload interface{} = census
		if v.Type == types.ParentSurvey {
			payload = survey
		}
		inserted, err = l.repo.InsertIgnore(dbc, v.Type, payload, l.batchSize)
		return err
	})
	return inserted, err
}

func (l *ParentLoader) loadRecordKeyed(ctx context.Context, v types.Variant, rows []Row, datasets DatasetIndex, res *ParentLoadResult) (int64, error) {
	keys := map[string]struct{}{}
	for _, row := range rows {
		if k := row.recordKey(); k != "" {
			keys[k] = struct{}{}
		}
	}

	var inserted int64
	err := l.tx.InTx(ctx, func(dbc dbctx.Context) error {
		existing, err := l.repo.RecordKeys(dbc, v.Type, sortedStrings(keys))
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(rows))
		var lab []types.LabRecord
		for _, row := range rows {
			key := row.recordKey()
			if key == "" {
				res.MissingKey[FieldRecordKey]++
				continue
			}
			if _, ok := existing[key]; ok {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			rec := types.LabRecord{
				RecordKey:      key,
				ResourceID:     row.ResourceID,
				Period:         row.Period,
				AnalysisMethod: row.AnalysisMethod,
				Provenance:     provenance(row, datasets.Lookup(row.Period, v.Type)),
			}
			if geo := row.geographyID(); geo != "" {
				rec.GeographyID = &geo
			}
			lab = append(lab, rec)
		}
		res.Candidates[v.Type] = len(lab)
		if len(lab) == 0 {
			return nil
		}
		payload, err := labPayload(v.Type, lab)
		if err != nil {
			return err
		}
		inserted, err = l.repo.InsertIgnore(dbc, v.Type, payload, l.batchSize)
		return err
	})
	return inserted, err
}

func labPayload(t types.ParentType, lab []types.LabRecord) (interface{}, error) {
	switch t {
	case types.ParentProximate:
		out := make([]types.ProximateRecord, len(lab))
		for i := range lab {
			out[i] = types.ProximateRecord{LabRecord: lab[i]}
		}
		return out, nil
	case types.ParentUltimate:
		out := make([]types.UltimateRecord, len(lab))
		for i := range lab {
			out[i] = types.UltimateRecord{LabRecord: lab[i]}
		}
		return out, nil
	case types.ParentCompositional:
		out := make([]types.CompositionalRecord, len(lab))
		for i := range lab {
			out[i] = types.CompositionalRecord{LabRecord: lab[i]}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("no record-keyed model for %s", t)
	}
}

func provenance(row Row, datasetID *int64) types.Provenance {
	return types.Provenance{
		DatasetID:      datasetID,
		RunID:          row.RunID,
		LineageGroupID: row.LineageGroupID,
		Note:           row.Note,
	}
}
