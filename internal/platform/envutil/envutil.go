package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// String returns the trimmed value of name, or def when unset or blank.
func String(name, def string, log *logger.Logger) string {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	return v
}

func Int(name string, def int, log *logger.Logger) int {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as int, using default", "env_var", name, "provided", v, "default", def)
		}
		return def
	}
	return i
}

func Int64(name string, def int64, log *logger.Logger) int64 {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		if log != nil {
			log.Debug("Environment variable could not be parsed as int64, using default", "env_var", name, "provided", v, "default", def)
		}
		return def
	}
	return i
}

func Bool(name string, def bool, log *logger.Logger) bool {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

// Duration accepts Go duration strings ("90s") or a bare integer of seconds.
func Duration(name string, def time.Duration, log *logger.Logger) time.Duration {
	v, ok := lookup(name)
	if !ok {
		debugDefault(log, name, def)
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func debugDefault(log *logger.Logger, name string, def interface{}) {
	if log != nil {
		log.Debug("Environment variable not found, using default", "env_var", name, "default", def)
	}
}
