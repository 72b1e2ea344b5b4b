package views

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
)

// materializer stores a view's query result so readers and dependent views
// see a stable snapshot between refreshes.
type materializer interface {
	// ensure creates the relation without data if it does not exist.
	ensure(tx *gorm.DB, name, query string) error
	// refresh recomputes the relation inside tx.
	refresh(tx *gorm.DB, name, query string) error
	drop(tx *gorm.DB, name string) error
}

func materializerFor(d db.Dialect) materializer {
	if d == db.DialectPostgres {
		return postgresMaterializer{}
	}
	return sqliteMaterializer{}
}

// postgresMaterializer uses native materialized views.
type postgresMaterializer struct{}

func (postgresMaterializer) ensure(tx *gorm.DB, name, query string) error {
	return tx.Exec(fmt.Sprintf("CREATE MATERIALIZED VIEW IF NOT EXISTS %s AS\n%s\nWITH NO DATA", name, query)).Error
}

func (postgresMaterializer) refresh(tx *gorm.DB, name, _ string) error {
	return tx.Exec(fmt.Sprintf("REFRESH MATERIALIZED VIEW %s", name)).Error
}

func (postgresMaterializer) drop(tx *gorm.DB, name string) error {
	return tx.Exec(fmt.Sprintf("DROP MATERIALIZED VIEW IF EXISTS %s CASCADE", name)).Error
}

// sqliteMaterializer keeps a snapshot table rebuilt on refresh.
type sqliteMaterializer struct{}

func (sqliteMaterializer) ensure(tx *gorm.DB, name, query string) error {
	return tx.Exec(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s AS SELECT * FROM (\n%s\n) AS q WHERE 1 = 0", name, query)).Error
}

func (sqliteMaterializer) refresh(tx *gorm.DB, name, query string) error {
	if err := tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", name)).Error; err != nil {
		return err
	}
	return tx.Exec(fmt.Sprintf("CREATE TABLE %s AS\n%s", name, query)).Error
}

func (sqliteMaterializer) drop(tx *gorm.DB, name string) error {
	return tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", name)).Error
}
