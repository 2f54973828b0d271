// Package logging provides structured logging functionality using Go's slog package.
// It supports both text and JSON output formats, configurable log levels,
// and component-scoped logging for the netscope application.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
)

const (
	// File permissions for directories and log files.
	logDirPerm  = 0750
	logFilePerm = 0600
)

// LogLevel represents the available log levels.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogFormat represents the available log formats.
type LogFormat string

const (
	FormatText LogFormat = "text"
	FormatJSON LogFormat = "json"
)

// Config holds logging configuration.
type Config struct {
	Level     LogLevel  `yaml:"level" json:"level"`
	Format    LogFormat `yaml:"format" json:"format"`
	Output    string    `yaml:"output" json:"output"`
	AddSource bool      `yaml:"add_source" json:"add_source"`
}

// DefaultConfig returns a default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     LevelInfo,
		Format:    FormatText,
		Output:    "stdout",
		AddSource: false,
	}
}

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
	config Config
}

// New creates a new structured logger with the given configuration.
func New(cfg Config) (*Logger, error) {
	var writer io.Writer
	switch cfg.Output {
	case "", "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		// Assume it's a file path
		if err := os.MkdirAll(filepath.Dir(cfg.Output), logDirPerm); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
		if err != nil {
			return nil, err
		}
		writer = file
	}

	return NewWithWriter(cfg, writer), nil
}

// NewWithWriter creates a logger that writes to w, ignoring cfg.Output.
func NewWithWriter(cfg Config, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		config: cfg,
	}
}

// NewDefault creates a logger with default configuration.
func NewDefault() *Logger {
	logger, _ := New(DefaultConfig())
	return logger
}

// NewNop creates a logger that discards everything.
func NewNop() *Logger {
	return NewWithWriter(DefaultConfig(), io.Discard)
}

// parseLevel maps a configured level onto slog. Unknown levels log at info.
func parseLevel(level LogLevel) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// WithFields adds structured fields to the logger.
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger: l.With(fields...),
		config: l.config,
	}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// WithRange adds a scan range field to the logger.
func (l *Logger) WithRange(rangeText string) *Logger {
	return l.WithFields("range", rangeText)
}

// WithError adds an error field to the logger.
func (l *Logger) WithError(err error) *Logger {
	return l.WithFields("error", err)
}

// InfoScan logs scan-related information.
func (l *Logger) InfoScan(msg, rangeText string, fields ...any) {
	l.Info(msg, prepend(fields, "range", rangeText)...)
}

// ErrorScan logs scan-related errors.
func (l *Logger) ErrorScan(msg, rangeText string, err error, fields ...any) {
	l.Error(msg, prepend(fields, "range", rangeText, "error", err)...)
}

// InfoMonitor logs monitoring-related information.
func (l *Logger) InfoMonitor(msg string, hostCount int, fields ...any) {
	l.Info(msg, prepend(fields, "hosts", hostCount)...)
}

// ErrorMonitor logs monitoring-related errors.
func (l *Logger) ErrorMonitor(msg string, err error, fields ...any) {
	l.Error(msg, prepend(fields, "error", err)...)
}

// WarnDesync logs a backend/session desynchronization.
func (l *Logger) WarnDesync(msg, ip string, fields ...any) {
	l.Warn(msg, prepend(fields, "kind", "desync", "ip", ip)...)
}

// ErrorCommand logs a failed backend command.
func (l *Logger) ErrorCommand(msg, command string, err error, fields ...any) {
	l.Error(msg, prepend(fields, "command", command, "error", err)...)
}

// InfoDatabase logs database activity.
func (l *Logger) InfoDatabase(msg string, fields ...any) {
	l.Info(msg, prepend(fields, "component", "database")...)
}

// ErrorDatabase logs database failures.
func (l *Logger) ErrorDatabase(msg string, err error, fields ...any) {
	l.Error(msg, prepend(fields, "component", "database", "error", err)...)
}

func prepend(fields []any, leading ...any) []any {
	return append(leading, fields...)
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(NewDefault())
}

// SetDefault replaces the package-level logger used by the helpers below.
func SetDefault(logger *Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

// Default returns the package-level logger.
func Default() *Logger {
	return defaultLogger.Load()
}

// Debug logs at debug level using the default logger.
func Debug(msg string, fields ...any) {
	Default().Debug(msg, fields...)
}

// Info logs at info level using the default logger.
func Info(msg string, fields ...any) {
	Default().Info(msg, fields...)
}

// Warn logs at warn level using the default logger.
func Warn(msg string, fields ...any) {
	Default().Warn(msg, fields...)
}

// Error logs at error level using the default logger.
func Error(msg string, fields ...any) {
	Default().Error(msg, fields...)
}

// InfoScan logs scan-related information using the default logger.
func InfoScan(msg, rangeText string, fields ...any) {
	Default().InfoScan(msg, rangeText, fields...)
}

// ErrorScan logs scan-related errors using the default logger.
func ErrorScan(msg, rangeText string, err error, fields ...any) {
	Default().ErrorScan(msg, rangeText, err, fields...)
}

// WarnDesync logs a desynchronization warning using the default logger.
func WarnDesync(msg, ip string, fields ...any) {
	Default().WarnDesync(msg, ip, fields...)
}
