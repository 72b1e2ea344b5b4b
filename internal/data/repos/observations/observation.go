package observations

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

type ObservationRepo interface {
	// ExistingKeys returns the stored uniqueness keys among observations of
	// parent type t that reference one of refs.
	ExistingKeys(dbc dbctx.Context, t types.ParentType, refs []string) (map[types.ObservationKey]struct{}, error)
	// InsertIgnore bulk-inserts rows, discarding any that collide with the
	// observation uniqueness key, and returns the stored insert count.
	InsertIgnore(dbc dbctx.Context, rows []types.Observation, batchSize int) (int64, error)
	// MaxID is the observation watermark used to detect stale views.
	MaxID(dbc dbctx.Context) (int64, error)
	Count(dbc dbctx.Context) (int64, error)
}

type observationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewObservationRepo(db *gorm.DB, baseLog *logger.Logger) ObservationRepo {
	return &observationRepo{db: db, log: baseLog.With("repo", "ObservationRepo")}
}

type observationKeyRow struct {
	ParentReference string
	ParentType      string
	ParameterID     int64
	UnitID          int64
}

func (r *observationRepo) ExistingKeys(dbc dbctx.Context, t types.ParentType, refs []string) (map[types.ObservationKey]struct{}, error) {
	out := make(map[types.ObservationKey]struct{})
	for _, chunk := range chunkStrings(refs, inChunkSize) {
		var rows []observationKeyRow
		if err := dbc.DB(r.db).
			Model(&types.Observation{}).
			Select("parent_reference, parent_type, parameter_id, unit_id").
			Where("parent_type = ? AND parent_reference IN ?", string(t), chunk).
			Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[types.ObservationKey{
				ParentReference: row.ParentReference,
				ParentType:      types.ParentType(row.ParentType),
				ParameterID:     row.ParameterID,
				UnitID:          row.UnitID,
			}] = struct{}{}
		}
	}
	return out, nil
}

func (r *observationRepo) InsertIgnore(dbc dbctx.Context, rows []types.Observation, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = inChunkSize
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "parent_reference"}, {Name: "parent_type"}, {Name: "parameter_id"}, {Name: "unit_id"}},
			DoNothing: true,
		}).
		CreateInBatches(&rows, batchSize)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *observationRepo) MaxID(dbc dbctx.Context) (int64, error) {
	var max int64
	if err := dbc.DB(r.db).Model(&types.Observation{}).Select("COALESCE(MAX(id), 0)").Scan(&max).Error; err != nil {
		return 0, err
	}
	return max, nil
}

func (r *observationRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&types.Observation{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
