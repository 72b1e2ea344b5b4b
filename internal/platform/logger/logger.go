package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap SugaredLogger with key/value redaction. Its method set
// also satisfies the Temporal SDK log.Logger interface.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "quiet":
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(sanitizeKVs(keysAndValues)...)}
}

// StdLog adapts the logger for libraries that want a *log.Logger, such as the
// gorm logger. Lines are emitted at the given level.
func (l *Logger) StdLog(level zapcore.Level) *log.Logger {
	std, err := zap.NewStdLogAt(l.SugaredLogger.Desugar(), level)
	if err != nil {
		return log.New(os.Stdout, "", log.LstdFlags)
	}
	return std
}

var (
	redactOnce       sync.Once
	redactionEnabled bool
)

func sanitizeKVs(kv []interface{}) []interface{} {
	if len(kv) == 0 || !redactionOn() {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := strings.TrimSpace(strings.ToLower(toString(kv[i])))
		out = append(out, toString(kv[i]), sanitizeValue(key, kv[i+1]))
	}
	return out
}

func sanitizeValue(key string, val interface{}) interface{} {
	if key != "" && isRedactKey(key) {
		return "[REDACTED]"
	}
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = sanitizeValue(strings.TrimSpace(strings.ToLower(k)), inner)
		}
		return out
	case string:
		return scrubDSN(v)
	default:
		return val
	}
}

func isRedactKey(key string) bool {
	switch {
	case strings.Contains(key, "password"),
		strings.Contains(key, "secret"),
		strings.Contains(key, "token"),
		strings.Contains(key, "dsn"),
		strings.Contains(key, "access_key"),
		strings.Contains(key, "credential"),
		strings.Contains(key, "authorization"):
		return true
	default:
		return false
	}
}

// scrubDSN masks the password portion of postgres:// style URLs and
// key=value DSNs that leak into error strings.
func scrubDSN(s string) string {
	if i := strings.Index(s, "password="); i >= 0 {
		end := strings.IndexByte(s[i:], ' ')
		if end < 0 {
			return s[:i] + "password=[REDACTED]"
		}
		return s[:i] + "password=[REDACTED]" + s[i+end:]
	}
	if i := strings.Index(s, "://"); i >= 0 {
		rest := s[i+3:]
		at := strings.IndexByte(rest, '@')
		colon := strings.IndexByte(rest, ':')
		if at > 0 && colon >= 0 && colon < at {
			return s[:i+3] + rest[:colon] + ":[REDACTED]" + rest[at:]
		}
	}
	return s
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func redactionOn() bool {
	redactOnce.Do(func() {
		switch strings.TrimSpace(strings.ToLower(os.Getenv("LOG_REDACTION_ENABLED"))) {
		case "0", "false", "no", "off":
			redactionEnabled = false
		default:
			redactionEnabled = true
		}
	})
	return redactionEnabled
}
