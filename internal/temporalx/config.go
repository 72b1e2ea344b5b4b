package temporalx

import (
	"strings"
	"time"
)

type Config struct {
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`

	ClientCertPath string `yaml:"client_cert_path"`
	ClientKeyPath  string `yaml:"client_key_path"`
	ClientCAPath   string `yaml:"client_ca_path"`

	AutoRegisterNamespace bool          `yaml:"auto_register_namespace"`
	RetentionDays         int           `yaml:"retention_days"`
	DialTimeout           time.Duration `yaml:"dial_timeout"`
	DialMaxWait           time.Duration `yaml:"dial_max_wait"`
	WorkerConcurrency     int           `yaml:"worker_concurrency"`
	// ActivityAttempts bounds retries of each ingestion stage.
	ActivityAttempts int32 `yaml:"activity_attempts"`
}

// Defaults returns a Config with every zero field filled.
func (c Config) Defaults() Config {
	c.Address = strings.TrimSpace(c.Address)
	c.Namespace = stringsOr(c.Namespace, "biositing")
	c.TaskQueue = stringsOr(c.TaskQueue, "biositing-ingest")
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		c.RetentionDays = 7
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.DialMaxWait < 0 {
		c.DialMaxWait = 0
	} else if c.DialMaxWait == 0 {
		c.DialMaxWait = time.Minute
	}
	if c.WorkerConcurrency < 1 {
		c.WorkerConcurrency = 4
	}
	if c.ActivityAttempts < 1 {
		c.ActivityAttempts = 3
	}
	return c
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Address) != "" }

func (c Config) tlsEnabled() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

func stringsOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
