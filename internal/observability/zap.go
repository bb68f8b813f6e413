package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger emits entries through zap, for deployments that ship JSON logs.
type ZapLogger struct {
	l *zap.Logger
}

// NewZapLogger wraps l.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{l: l}
}

// NewJSONLogger builds a production zap logger writing JSON to stdout.
func NewJSONLogger(debug bool) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return NewZapLogger(l), nil
}

func (z *ZapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, zapFields(fields)...) }

func (z *ZapLogger) Info(msg string, fields ...Field) { z.l.Info(msg, zapFields(fields)...) }

func (z *ZapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, zapFields(fields)...) }

// Sync flushes buffered entries.
func (z *ZapLogger) Sync() error { return z.l.Sync() }

func zapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
