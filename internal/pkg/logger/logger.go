package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a config string to a Level. Unknown values are an error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

// Logger provides structured JSON logging with optional PII redaction.
type Logger struct {
	sugar     *zap.SugaredLogger
	redactPII bool
}

// New builds a JSON logger writing to out.
func New(level Level, out zapcore.WriteSyncer, redactPII bool) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), out, zap.NewAtomicLevelAt(level.zapLevel()))
	return &Logger{sugar: zap.New(core).Sugar(), redactPII: redactPII}
}

var defaultLogger = New(INFO, zapcore.Lock(os.Stderr), true)

// SetDefault replaces the process-wide logger used by the package functions.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Default returns the process-wide logger.
func Default() *Logger { return defaultLogger }

// Configure rebuilds the default logger from config values.
func Configure(level string, redactPII bool) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	SetDefault(New(lvl, zapcore.Lock(os.Stderr), redactPII))
	return nil
}

// Sync flushes the default logger.
func Sync() { _ = defaultLogger.sugar.Sync() }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.Debug(msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.Info(msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.Warn(msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.Error(msg, fields...) }

func (l *Logger) Debug(msg string, fields ...interface{}) { l.sugar.Debugw(msg, l.sanitize(fields)...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.sugar.Infow(msg, l.sanitize(fields)...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.sugar.Warnw(msg, l.sanitize(fields)...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.sugar.Errorw(msg, l.sanitize(fields)...) }

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(l.sanitize(fields)...), redactPII: l.redactPII}
}

type ctxKey struct{}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return defaultLogger
}

// sanitize stringifies key/value pairs and applies PII redaction.
// A trailing key without a value is dropped.
func (l *Logger) sanitize(fields []interface{}) []interface{} {
	out := make([]interface{}, 0, len(fields))
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fields[i+1]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		if l.redactPII {
			val = redactField(key, fmt.Sprintf("%v", val))
		}
		out = append(out, key, val)
	}
	return out
}
