package observations

import (
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// ParentRecordRepo reads and bulk-inserts every parent record variant.
type ParentRecordRepo interface {
	// NaturalKeys returns key -> id for records of a natural-key variant
	// whose period is in periods.
	NaturalKeys(dbc dbctx.Context, t types.ParentType, periods []int) (map[types.NaturalKey]int64, error)
	// RecordKeys returns record_key -> id for the given keys of a
	// record-key variant.
	RecordKeys(dbc dbctx.Context, t types.ParentType, keys []string) (map[string]int64, error)
	// InsertIgnore bulk-inserts rows (a slice of the variant's model) and
	// skips rows whose identity key already exists. It returns the number of
	// rows the store reports as inserted.
	InsertIgnore(dbc dbctx.Context, t types.ParentType, rows interface{}, batchSize int) (int64, error)
	// Latest returns the natural-key record with the greatest period for
	// (geographyID, commodityCode).
	Latest(dbc dbctx.Context, t types.ParentType, geographyID string, commodityCode int64) (types.ParentHandle, error)
	Get(dbc dbctx.Context, t types.ParentType, reference string) (types.ParentHandle, error)
}

type parentRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewParentRecordRepo(db *gorm.DB, baseLog *logger.Logger) ParentRecordRepo {
	return &parentRecordRepo{db: db, log: baseLog.With("repo", "ParentRecordRepo")}
}

type naturalKeyRow struct {
	ID            int64
	GeographyID   string
	Period        int
	CommodityCode int64
}

type recordKeyRow struct {
	ID        int64
	RecordKey string
}

func (r *parentRecordRepo) variant(t types.ParentType, want types.KeyKind) (types.Variant, error) {
	v, ok := types.Lookup(t)
	if !ok {
		return types.Variant{}, fmt.Errorf("%w: %q", types.ErrUnknownParentType, t)
	}
	if want != 0 && v.Key != want {
		return types.Variant{}, fmt.Errorf("%w: %s is %s-keyed, not %s-keyed", types.ErrKeyKind, t, v.Key, want)
	}
	return v, nil
}

func (r *parentRecordRepo) NaturalKeys(dbc dbctx.Context, t types.ParentType, periods []int) (map[types.NaturalKey]int64, error) {
	v, err := r.variant(t, types.KeyNatural)
	if err != nil {
		return nil, err
	}
	out := make(map[types.NaturalKey]int64)
	for _, chunk := range chunkInts(periods, inChunkSize) {
		var rows []naturalKeyRow
		if err := dbc.DB(r.db).
			Table(v.Table).
			Select("id, geography_id, period, commodity_code").
			Where("period IN ?", chunk).
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[types.NaturalKey{GeographyID: row.GeographyID, Period: row.Period, CommodityCode: row.CommodityCode}] = row.ID
		}
	}
	return out, nil
}

func (r *parentRecordRepo) RecordKeys(dbc dbctx.Context, t types.ParentType, keys []string) (map[string]int64, error) {
	v, err := r.variant(t, types.KeyRecord)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(keys))
	for _, chunk := range chunkStrings(keys, inChunkSize) {
		var rows []recordKeyRow
		if err := dbc.DB(r.db).
			Table(v.Table).
			Select("id, record_key").
			Where("record_key IN ?", chunk).
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[row.RecordKey] = row.ID
		}
	}
	return out, nil
}

func conflictColumns(v types.Variant) []clause.Column {
	if v.Key == types.KeyRecord {
		return []clause.Column{{Name: "record_key"}}
	}
	return []clause.Column{{Name: "geography_id"}, {Name: "period"}, {Name: "commodity_code"}}
}

func checkRows(t types.ParentType, rows interface{}) (int, error) {
	var n int
	switch rs := rows.(type) {
	case []types.CensusRecord:
		n = len(rs)
		if t != types.ParentCensus {
			return 0, fmt.Errorf("census rows passed for %s", t)
		}
	case []types.SurveyRecord:
		n = len(rs)
		if t != types.ParentSurvey {
			return 0, fmt.Errorf("survey rows passed for %s", t)
		}
	case []types.ProximateRecord:
		n = len(rs)
		if t != types.ParentProximate {
			return 0, fmt.Errorf("proximate rows passed for %s", t)
		}
	case []types.UltimateRecord:
		n = len(rs)
		if t != types.ParentUltimate {
			return 0, fmt.Errorf("ultimate rows passed for %s", t)
		}
	case []types.CompositionalRecord:
		n = len(rs)
		if t != types.ParentCompositional {
			return 0, fmt.Errorf("compositional rows passed for %s", t)
		}
	default:
		return 0, fmt.Errorf("unsupported parent rows %T", rows)
	}
	return n, nil
}

func (r *parentRecordRepo) InsertIgnore(dbc dbctx.Context, t types.ParentType, rows interface{}, batchSize int) (int64, error) {
	v, err := r.variant(t, 0)
	if err != nil {
		return 0, err
	}
	n, err := checkRows(t, rows)
	if err != nil || n == 0 {
		return 0, err
	}
	if batchSize <= 0 {
		batchSize = inChunkSize
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: conflictColumns(v), DoNothing: true}).
		CreateInBatches(rows, batchSize)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *parentRecordRepo) Latest(dbc dbctx.Context, t types.ParentType, geographyID string, commodityCode int64) (types.ParentHandle, error) {
	if _, err := r.variant(t, types.KeyNatural); err != nil {
		return types.ParentHandle{}, err
	}
	q := dbc.DB(r.db).
		Where("geography_id = ? AND commodity_code = ?", geographyID, commodityCode).
		Order("period DESC").
		Limit(1)
	switch t {
	case types.ParentCensus:
		var row types.CensusRecord
		if err := q.Take(&row).Error; err != nil {
			return types.ParentHandle{}, notFound(err)
		}
		return types.Handle(row)
	default:
		var row types.SurveyRecord
		if err := q.Take(&row).Error; err != nil {
			return types.ParentHandle{}, notFound(err)
		}
		return types.Handle(row)
	}
}

// Get follows a stored reference: the generated id for natural-key
// variants, record_key otherwise.
func (r *parentRecordRepo) Get(dbc dbctx.Context, t types.ParentType, reference string) (types.ParentHandle, error) {
	v, err := r.variant(t, 0)
	if err != nil {
		return types.ParentHandle{}, err
	}
	q := dbc.DB(r.db)
	if v.Key == types.KeyNatural {
		id, perr := strconv.ParseInt(reference, 10, 64)
		if perr != nil {
			return types.ParentHandle{}, fmt.Errorf("%w: %s reference %q is not an id", types.ErrParentNotFound, t, reference)
		}
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("record_key = ?", reference)
	}

	var rec interface{}
	switch t {
	case types.ParentCensus:
		rec = &types.CensusRecord{}
	case types.ParentSurvey:
		rec = &types.SurveyRecord{}
	case types.ParentProximate:
		rec = &types.ProximateRecord{}
	case types.ParentUltimate:
		rec = &types.UltimateRecord{}
	case types.ParentCompositional:
		rec = &types.CompositionalRecord{}
	default:
		return types.ParentHandle{}, types.ErrUnknownParentType
	}
	if err := q.Take(rec).Error; err != nil {
		return types.ParentHandle{}, notFound(err)
	}
	return types.Handle(rec)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ErrParentNotFound
	}
	return err
}
