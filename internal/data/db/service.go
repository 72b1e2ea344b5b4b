package db

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// Dialect names the storage engine behind a Service.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Config selects and parameterizes the relational store.
type Config struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	SQLitePath   string `yaml:"sqlite_path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	SlowQuery    string `yaml:"slow_query"`
}

// Service owns the gorm handle for one store.
type Service struct {
	db      *gorm.DB
	dialect Dialect
	log     *logger.Logger
}

// Open connects to the store named by cfg.Driver.
func Open(cfg Config, logg *logger.Logger) (*Service, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(cfg.Driver))) {
	case DialectPostgres, "":
		return NewPostgresService(cfg, logg)
	case DialectSQLite:
		return NewSQLiteService(cfg, logg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Wrap adopts an existing handle, for tests and embedding callers.
func Wrap(db *gorm.DB, logg *logger.Logger) *Service {
	return &Service{db: db, dialect: DialectOf(db), log: logg.With("service", "DatabaseService")}
}

func (s *Service) DB() *gorm.DB        { return s.db }
func (s *Service) Dialect() Dialect    { return s.dialect }
func (s *Service) Log() *logger.Logger { return s.log }

// Ping checks connectivity; used by readiness probes.
func (s *Service) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DialectOf reports the dialect of a gorm handle.
func DialectOf(db *gorm.DB) Dialect {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return DialectPostgres
	}
	return DialectSQLite
}

func gormConfig(cfg Config, logg *logger.Logger) *gorm.Config {
	slow := time.Second
	if d, err := time.ParseDuration(cfg.SlowQuery); err == nil && d > 0 {
		slow = d
	}
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: gormLogger.New(
			logg.With("component", "gorm").StdLog(zapcore.WarnLevel),
			gormLogger.Config{
				SlowThreshold:             slow,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	}
}
