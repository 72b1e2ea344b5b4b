package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

type Config struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Channel receives view refresh events.
	Channel string `yaml:"channel"`
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

// Dial connects and pings. Callers own Close.
func Dial(ctx context.Context, cfg Config, log *logger.Logger) (*goredis.Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Debug("Redis connected", "addr", addr, "db", cfg.DB)
	return rdb, nil
}
