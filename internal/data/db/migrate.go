package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/uw-ssec/ca-biositing-sub000/internal/domain/records"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(records.All()...)
}

// EnsureIndexes creates lookup indexes that gorm tags do not express.
func EnsureIndexes(db *gorm.DB) error {
	stmts := []struct{ name, sql string }{
		{"idx_observation_parent_type_param", `CREATE INDEX IF NOT EXISTS idx_observation_parent_type_param ON observation(parent_type, parameter_id);`},
		{"idx_census_record_geo_commodity", `CREATE INDEX IF NOT EXISTS idx_census_record_geo_commodity ON census_record(geography_id, commodity_code, period);`},
		{"idx_survey_record_geo_commodity", `CREATE INDEX IF NOT EXISTS idx_survey_record_geo_commodity ON survey_record(geography_id, commodity_code, period);`},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "dialect", s.dialect)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureIndexes(s.db); err != nil {
		s.log.Error("Index migration failed", "error", err)
		return err
	}
	return nil
}
