package repos

import (
	"gorm.io/gorm"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/repos/observations"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

type DatasetRepo = observations.DatasetRepo
type ParentRecordRepo = observations.ParentRecordRepo
type ObservationRepo = observations.ObservationRepo
type IngestionRunRepo = observations.IngestionRunRepo

// Repos bundles every repository over one gorm handle.
type Repos struct {
	Datasets     DatasetRepo
	Parents      ParentRecordRepo
	Observations ObservationRepo
	Runs         IngestionRunRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Datasets:     observations.NewDatasetRepo(db, log),
		Parents:      observations.NewParentRecordRepo(db, log),
		Observations: observations.NewObservationRepo(db, log),
		Runs:         observations.NewIngestionRunRepo(db, log),
	}
}
