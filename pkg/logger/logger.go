package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log level
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelDebug Level = "DEBUG"
)

// Options configures a Logger
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output io.Writer
}

// Logger provides structured logging
type Logger struct {
	zl zerolog.Logger
}

// New creates a new logger writing JSON at info level to stdout
func New() *Logger {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a logger from explicit options
func NewWithOptions(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zl := zerolog.New(out).Level(parseLevel(opts.Level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that always carries the given fields
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Str(f.Key, f.Value)
	}
	return &Logger{zl: ctx.Logger()}
}

// Log writes a structured log entry
func (l *Logger) Log(level Level, message string, fields ...Field) {
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.zl.Debug()
	case LevelWarn:
		ev = l.zl.Warn()
	case LevelError:
		ev = l.zl.Error()
	default:
		ev = l.zl.Info()
	}
	for _, f := range fields {
		ev = ev.Str(f.Key, f.Value)
	}
	ev.Msg(message)
}

// Info logs an info message
func (l *Logger) Info(message string, fields ...Field) {
	l.Log(LevelInfo, message, fields...)
}

// Warn logs a warning
func (l *Logger) Warn(message string, fields ...Field) {
	l.Log(LevelWarn, message, fields...)
}

// Error logs an error message
func (l *Logger) Error(message string, fields ...Field) {
	l.Log(LevelError, message, fields...)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...Field) {
	l.Log(LevelDebug, message, fields...)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value string
}

// F creates a Field
func F(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Err creates an "error" Field, tolerating nil
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
