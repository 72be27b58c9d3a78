package core

import (
	"fmt"
	"log"
)

// Logger interface for structured logging
// Implementations can provide custom logging behavior (e.g., integration with logrus, zap, etc.)
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// DefaultLogger is a simple logger implementation using the standard log package
type DefaultLogger struct{}

// NewDefaultLogger creates a new DefaultLogger
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, fields ...Field) {
	l.log("DEBUG", msg, fields...)
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, fields ...Field) {
	l.log("INFO", msg, fields...)
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, fields ...Field) {
	l.log("WARN", msg, fields...)
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, fields ...Field) {
	l.log("ERROR", msg, fields...)
}

// log is the internal logging method
func (l *DefaultLogger) log(level, msg string, fields ...Field) {
	// Build the log message
	logMsg := fmt.Sprintf("[%s] %s", level, msg)
	if len(fields) > 0 {
		logMsg += " {"
		for i, f := range fields {
			if i > 0 {
				logMsg += ", "
			}
			logMsg += fmt.Sprintf("%s: %v", f.Key, f.Value)
		}
		logMsg += "}"
	}
	log.Println(logMsg)
}

// NoOpLogger is a logger that discards all log messages
// Useful for tests or when logging is not desired
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}

// namedLogger prepends a fixed set of fields (typically "component" and an
// instance id) to every call, so a worker's or fiber's log lines can be
// told apart without threading an id through every call site.
type namedLogger struct {
	base   Logger
	prefix []Field
}

// Named wraps base so every call carries the given fields in addition to
// whatever the call site passes. Workers use this to scope their own log
// lines by worker id without the callers of Logger needing to know about
// it.
func Named(base Logger, fields ...Field) Logger {
	if base == nil {
		base = NewNoOpLogger()
	}
	return &namedLogger{base: base, prefix: fields}
}

func (l *namedLogger) with(fields []Field) []Field {
	if len(l.prefix) == 0 {
		return fields
	}
	out := make([]Field, 0, len(l.prefix)+len(fields))
	out = append(out, l.prefix...)
	return append(out, fields...)
}

func (l *namedLogger) Debug(msg string, fields ...Field) { l.base.Debug(msg, l.with(fields)...) }
func (l *namedLogger) Info(msg string, fields ...Field)  { l.base.Info(msg, l.with(fields)...) }
func (l *namedLogger) Warn(msg string, fields ...Field)  { l.base.Warn(msg, l.with(fields)...) }
func (l *namedLogger) Error(msg string, fields ...Field) { l.base.Error(msg, l.with(fields)...) }
