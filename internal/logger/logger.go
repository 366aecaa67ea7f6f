package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a structured key/value logger. Values under secret-looking keys
// are redacted and user identifiers are hashed before they reach the sink.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a logger for the given mode: "prod" writes JSON at info level,
// anything else writes console output at debug level.
func New(mode string) (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	if m := strings.ToLower(strings.TrimSpace(mode)); m == "prod" || m == "production" {
		cfg = zap.NewProductionConfig()
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &Logger{sugar: z.Sugar()}, nil
}

// NewWithCore wraps an existing zap core, e.g. an observer in tests.
func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{sugar: zap.New(core).Sugar()}
}

func Nop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.sugar.Debugw(msg, scrub(kv)...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.sugar.Infow(msg, scrub(kv)...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.sugar.Warnw(msg, scrub(kv)...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.sugar.Errorw(msg, scrub(kv)...) }

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(scrub(kv)...)}
}

var secretKeyParts = []string{"token", "authorization", "password", "secret", "api_key", "apikey"}

// scrub returns a copy of kv with sensitive values replaced. A trailing key
// without a value is passed through for zap to report.
func scrub(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		key := fmt.Sprint(out[i])
		out[i] = key
		norm := strings.ToLower(strings.TrimSpace(key))
		switch {
		case isSecretKey(norm):
			out[i+1] = "[REDACTED]"
		case strings.Contains(norm, "user_id"):
			out[i+1] = pseudonym(out[i+1])
		}
	}
	return out
}

func isSecretKey(key string) bool {
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

// pseudonym is a short stable digest so one user's log lines still correlate.
func pseudonym(v interface{}) string {
	var raw string
	switch t := v.(type) {
	case nil:
	case string:
		raw = t
	case []byte:
		raw = string(t)
	default:
		raw = strings.TrimSpace(fmt.Sprint(t))
	}
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(raw))
	return "hash:" + hex.EncodeToString(sum[:6])
}
