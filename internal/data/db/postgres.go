package db

import (
	"fmt"
	"net/url"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

func NewPostgresService(cfg Config, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "PostgresService")

	dsn := cfg.DSN
	if dsn == "" {
		dsn = postgresDSN(cfg)
	}
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(cfg, logg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	serviceLog.Info("Connected to Postgres", "host", cfg.Host, "database", cfg.Name)
	return &Service{db: db, dialect: DialectPostgres, log: serviceLog}, nil
}

func postgresDSN(cfg Config) string {
	host, port, user, name := cfg.Host, cfg.Port, cfg.User, cfg.Name
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "5432"
	}
	if user == "" {
		user = "postgres"
	}
	if name == "" {
		name = "biositing"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, cfg.Password),
		Host:     host + ":" + port,
		Path:     "/" + name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
