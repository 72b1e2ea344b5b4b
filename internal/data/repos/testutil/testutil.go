package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("quiet")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// Service opens a migrated store private to tb. It uses a temp-file SQLite
// database unless TEST_POSTGRES_DSN is set, in which case it creates a
// throwaway schema on that server.
func Service(tb testing.TB) *db.Service {
	tb.Helper()
	if dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN")); dsn != "" {
		return postgresService(tb, dsn)
	}
	svc, err := db.Open(db.Config{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(tb.TempDir(), "test.db"),
	}, Logger(tb))
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = svc.Close() })
	if err := svc.AutoMigrateAll(); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return svc
}

// DB is Service(tb).DB().
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	return Service(tb).DB()
}

func postgresService(tb testing.TB, dsn string) *db.Service {
	tb.Helper()
	admin, err := db.Open(db.Config{Driver: "postgres", DSN: dsn}, Logger(tb))
	if err != nil {
		tb.Fatalf("open postgres: %v", err)
	}
	schema := fmt.Sprintf("t_%d", time.Now().UnixNano())
	if err := admin.DB().Exec("CREATE SCHEMA " + schema).Error; err != nil {
		tb.Fatalf("create schema: %v", err)
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	svc, err := db.Open(db.Config{Driver: "postgres", DSN: dsn + sep + "search_path=" + schema}, Logger(tb))
	if err != nil {
		tb.Fatalf("open postgres schema: %v", err)
	}
	tb.Cleanup(func() {
		_ = svc.Close()
		_ = admin.DB().Exec("DROP SCHEMA " + schema + " CASCADE").Error
		_ = admin.Close()
	})
	if err := svc.AutoMigrateAll(); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return svc
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
