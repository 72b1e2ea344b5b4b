package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uw-ssec/ca-biositing-sub000/internal/data/db"
	"github.com/uw-ssec/ca-biositing-sub000/internal/observability"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/batchsource"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/envutil"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/redis"
	"github.com/uw-ssec/ca-biositing-sub000/internal/temporalx"
)

type IngestConfig struct {
	// Source overrides the per-variant dataset source code.
	Source       string        `yaml:"source"`
	SourceID     *int64        `yaml:"source_id"`
	BatchSize    int           `yaml:"batch_size"`
	StageTimeout time.Duration `yaml:"stage_timeout"`
	// Concurrency bounds how many batch files one ingest command loads at once.
	Concurrency int `yaml:"concurrency"`
}

type ViewsConfig struct {
	RefreshAfterIngest bool          `yaml:"refresh_after_ingest"`
	LockTTL            time.Duration `yaml:"lock_ttl"`
}

type OpsConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type Config struct {
	LogMode  string                   `yaml:"log_mode"`
	DB       db.Config                `yaml:"db"`
	Ingest   IngestConfig             `yaml:"ingest"`
	Views    ViewsConfig              `yaml:"views"`
	Sources  batchsource.Config       `yaml:"sources"`
	Redis    redis.Config             `yaml:"redis"`
	Temporal temporalx.Config         `yaml:"temporal"`
	Ops      OpsConfig                `yaml:"ops"`
	Otel     observability.OtelConfig `yaml:"otel"`
}

func defaultConfig() Config {
	return Config{
		LogMode: "development",
		DB: db.Config{
			Driver:       "postgres",
			Host:         "localhost",
			Port:         "5432",
			User:         "biocirv_user",
			Name:         "biocirv_db",
			MaxOpenConns: 10,
			SlowQuery:    "1s",
		},
		Ingest: IngestConfig{BatchSize: 1000, Concurrency: 4},
		Views:  ViewsConfig{LockTTL: 10 * time.Minute},
		Ops:    OpsConfig{Addr: ":8080"},
		Otel:   observability.OtelConfig{ServiceName: "biositing", SampleRatio: 1},
	}
}

// LoadConfig layers defaults, the YAML file at path (optional), and
// environment overrides, then validates the result.
func LoadConfig(path string, log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg, log)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, log *logger.Logger) {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode, log)

	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver, log)
	cfg.DB.DSN = envutil.String("DATABASE_URL", cfg.DB.DSN, log)
	cfg.DB.Host = envutil.String("POSTGRES_HOST", cfg.DB.Host, log)
	cfg.DB.Port = envutil.String("POSTGRES_PORT", cfg.DB.Port, log)
	cfg.DB.User = envutil.String("POSTGRES_USER", cfg.DB.User, log)
	cfg.DB.Password = envutil.String("POSTGRES_PASSWORD", cfg.DB.Password, log)
	cfg.DB.Name = envutil.String("POSTGRES_DB", cfg.DB.Name, log)
	cfg.DB.SQLitePath = envutil.String("SQLITE_PATH", cfg.DB.SQLitePath, log)
	cfg.DB.MaxOpenConns = envutil.Int("DB_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns, log)

	cfg.Ingest.Source = envutil.String("INGEST_SOURCE", cfg.Ingest.Source, log)
	if id := envutil.Int64("INGEST_SOURCE_ID", 0, log); id > 0 {
		cfg.Ingest.SourceID = &id
	}
	cfg.Ingest.BatchSize = envutil.Int("INGEST_BATCH_SIZE", cfg.Ingest.BatchSize, log)
	cfg.Ingest.StageTimeout = envutil.Duration("INGEST_STAGE_TIMEOUT", cfg.Ingest.StageTimeout, log)
	cfg.Ingest.Concurrency = envutil.Int("INGEST_CONCURRENCY", cfg.Ingest.Concurrency, log)

	cfg.Views.RefreshAfterIngest = envutil.Bool("VIEWS_REFRESH_AFTER_INGEST", cfg.Views.RefreshAfterIngest, log)
	cfg.Views.LockTTL = envutil.Duration("VIEWS_LOCK_TTL", cfg.Views.LockTTL, log)

	cfg.Sources.GCS.Credentials = envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", cfg.Sources.GCS.Credentials, log)
	cfg.Sources.GCS.EmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", cfg.Sources.GCS.EmulatorHost, log)
	cfg.Sources.S3.Region = envutil.String("AWS_REGION", cfg.Sources.S3.Region, log)
	cfg.Sources.S3.Endpoint = envutil.String("S3_ENDPOINT", cfg.Sources.S3.Endpoint, log)
	cfg.Sources.S3.PathStyle = envutil.Bool("S3_PATH_STYLE", cfg.Sources.S3.PathStyle, log)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr, log)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password, log)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel, log)

	cfg.Temporal.Address = envutil.String("TEMPORAL_ADDRESS", cfg.Temporal.Address, log)
	cfg.Temporal.Namespace = envutil.String("TEMPORAL_NAMESPACE", cfg.Temporal.Namespace, log)
	cfg.Temporal.TaskQueue = envutil.String("TEMPORAL_TASK_QUEUE", cfg.Temporal.TaskQueue, log)
	cfg.Temporal.ClientCertPath = envutil.String("TEMPORAL_CLIENT_CERT_PATH", cfg.Temporal.ClientCertPath, log)
	cfg.Temporal.ClientKeyPath = envutil.String("TEMPORAL_CLIENT_KEY_PATH", cfg.Temporal.ClientKeyPath, log)
	cfg.Temporal.ClientCAPath = envutil.String("TEMPORAL_CLIENT_CA_PATH", cfg.Temporal.ClientCAPath, log)
	cfg.Temporal.AutoRegisterNamespace = envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", cfg.Temporal.AutoRegisterNamespace, log)
	cfg.Temporal.WorkerConcurrency = envutil.Int("WORKER_CONCURRENCY", cfg.Temporal.WorkerConcurrency, log)

	cfg.Ops.Addr = envutil.String("OPS_ADDR", cfg.Ops.Addr, log)
	if origins := envutil.String("OPS_CORS_ORIGINS", "", log); origins != "" {
		cfg.Ops.CORSOrigins = splitList(origins)
	}

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled, log)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName, log)
	cfg.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Otel.Environment, log)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint, log)
	cfg.Otel.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", cfg.Otel.Headers, log)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure, log)
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(strings.TrimSpace(c.DB.Driver)) {
	case "postgres", "":
	case "sqlite":
		if strings.TrimSpace(c.DB.SQLitePath) == "" {
			errs = append(errs, errors.New("db.sqlite_path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("db.driver %q is not supported", c.DB.Driver))
	}
	if c.Ingest.BatchSize < 1 {
		errs = append(errs, errors.New("ingest.batch_size must be positive"))
	}
	if c.Ingest.Concurrency < 1 {
		errs = append(errs, errors.New("ingest.concurrency must be positive"))
	}
	if c.Ingest.StageTimeout < 0 {
		errs = append(errs, errors.New("ingest.stage_timeout must not be negative"))
	}
	if c.Views.LockTTL <= 0 {
		errs = append(errs, errors.New("views.lock_ttl must be positive"))
	}
	if c.Otel.SampleRatio < 0 || c.Otel.SampleRatio > 1 {
		errs = append(errs, errors.New("otel.sample_ratio must be within [0, 1]"))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
