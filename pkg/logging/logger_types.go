package logging

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// Level represents a log level
type Level int32

const (
	// DebugLevel covers per-fetch and per-level loader detail.
	DebugLevel Level = iota
	// InfoLevel is the default: one line per analysis start and finish.
	InfoLevel
	// WarnLevel marks degraded results such as retries, incomplete nodes and missing roots.
	WarnLevel
	// ErrorLevel marks failed analyses and server faults.
	ErrorLevel
)

// String returns the string representation of a log level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level, case-insensitively. Unknown
// names fall back to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With creates a child logger with the given fields pre-set
	With(fields ...Field) Logger
	// SetLevel sets the minimum level for this logger and every logger
	// derived from the same root.
	SetLevel(level Level)
	GetLevel() Level
}

// JSONLogger writes one JSON object per line.
//
// Loggers derived with With share the root's writer lock and level, so
// entries from concurrent fetch workers never interleave and a SetLevel on
// the root reaches every analysis logger.
type JSONLogger struct {
	shared *loggerCore
	fields []Field
}

type loggerCore struct {
	mu     sync.Mutex
	writer io.Writer
	level  atomic.Int32
}

// LogEntry represents a single log entry in JSON format
type LogEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Warn(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (n NopLogger) With(fields ...Field) Logger     { return n }
func (NopLogger) SetLevel(level Level)              {}
func (NopLogger) GetLevel() Level                   { return ErrorLevel + 1 }

// NewNopLogger creates a logger that discards all output
func NewNopLogger() Logger {
	return NopLogger{}
}
