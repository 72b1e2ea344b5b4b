package db

import (
	"database/sql/driver"
	"fmt"
	"math"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	msqlite "modernc.org/sqlite"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// SQLiteSqrtFunc is registered on the pure-Go driver so sample standard
// deviation can be computed in SQL on SQLite.
const SQLiteSqrtFunc = "bio_sqrt"

var registerOnce sync.Once
var registerErr error

func registerSQLiteFunctions() error {
	registerOnce.Do(func() {
		registerErr = msqlite.RegisterDeterministicScalarFunction(SQLiteSqrtFunc, 1,
			func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				switch v := args[0].(type) {
				case nil:
					return nil, nil
				case float64:
					if v < 0 {
						v = 0
					}
					return math.Sqrt(v), nil
				case int64:
					if v < 0 {
						v = 0
					}
					return math.Sqrt(float64(v)), nil
				default:
					return nil, fmt.Errorf("%s: unsupported argument %T", SQLiteSqrtFunc, v)
				}
			})
	})
	return registerErr
}

// NewSQLiteService opens a file-backed SQLite store through modernc.org/sqlite.
func NewSQLiteService(cfg Config, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "SQLiteService")
	if err := registerSQLiteFunctions(); err != nil {
		return nil, fmt.Errorf("register sqlite functions: %w", err)
	}
	path := cfg.SQLitePath
	if path == "" {
		path = cfg.DSN
	}
	if path == "" {
		path = "biositing.db"
	}
	db, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: "sqlite",
		DSN:        path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
	}), gormConfig(cfg, logg))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// One writer at a time; concurrent writers would hit SQLITE_BUSY.
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	serviceLog.Info("Opened SQLite", "path", path)
	return &Service{db: db, dialect: DialectSQLite, log: serviceLog}, nil
}
