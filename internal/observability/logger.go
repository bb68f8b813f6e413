// Package observability defines shared logging primitives.
package observability

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Logger captures structured logging behaviours shared across layers.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

type loggerHolder struct{ Logger }

var defaultLogger atomic.Value

func init() {
	defaultLogger.Store(loggerHolder{noopLogger{}})
}

// SetLogger overrides the global logger used by the system.
func SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	defaultLogger.Store(loggerHolder{logger})
}

// Log returns the current global logger instance.
func Log() Logger {
	return defaultLogger.Load().(loggerHolder).Logger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

// StdLogger writes one line per entry through a standard library logger:
// the level, the message, then key=value pairs in call order.
type StdLogger struct {
	out   *log.Logger
	debug bool
}

// NewStdLogger wraps out. Debug entries are dropped unless debug is set.
func NewStdLogger(out *log.Logger, debug bool) *StdLogger {
	return &StdLogger{out: out, debug: debug}
}

func (l *StdLogger) Debug(msg string, fields ...Field) {
	if !l.debug {
		return
	}
	l.write("DEBUG", msg, fields)
}

func (l *StdLogger) Info(msg string, fields ...Field) { l.write("INFO", msg, fields) }

func (l *StdLogger) Error(msg string, fields ...Field) { l.write("ERROR", msg, fields) }

func (l *StdLogger) write(level, msg string, fields []Field) {
	if l == nil || l.out == nil {
		return
	}
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	for _, f := range fields {
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(formatValue(f.Value))
	}
	l.out.Print(b.String())
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		if val == "" || strings.ContainsAny(val, " \t\"=") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case error:
		if val == nil {
			return "<nil>"
		}
		return fmt.Sprintf("%q", val.Error())
	default:
		return fmt.Sprint(val)
	}
}
