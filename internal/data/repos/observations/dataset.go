package observations

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/dbctx"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

type DatasetRepo interface {
	GetByName(dbc dbctx.Context, name string) (*types.Dataset, error)
	// InsertIgnore inserts row unless a dataset with the same name already
	// exists; it reports whether this call created the row.
	InsertIgnore(dbc dbctx.Context, row *types.Dataset) (bool, error)
	List(dbc dbctx.Context) ([]*types.Dataset, error)
}

type datasetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatasetRepo(db *gorm.DB, baseLog *logger.Logger) DatasetRepo {
	return &datasetRepo{db: db, log: baseLog.With("repo", "DatasetRepo")}
}

func (r *datasetRepo) GetByName(dbc dbctx.Context, name string) (*types.Dataset, error) {
	var out types.Dataset
	err := dbc.DB(r.db).Where("name = ?", name).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *datasetRepo) InsertIgnore(dbc dbctx.Context, row *types.Dataset) (bool, error) {
	if row == nil || row.Name == "" {
		return false, nil
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *datasetRepo) List(dbc dbctx.Context) ([]*types.Dataset, error) {
	var out []*types.Dataset
	if err := dbc.DB(r.db).Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
