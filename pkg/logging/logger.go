package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Logger interface for dependency injection and testing
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
	SetLevel(level slog.Level)
}

// Config holds logger configuration
type Config struct {
	Level   slog.Level
	Format  Format
	Output  io.Writer
	AddTime bool
}

// Format represents the output format
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// slogLogger wraps slog.Logger to implement our Logger interface
type slogLogger struct {
	logger *slog.Logger
	config Config
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config Config) Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	return &slogLogger{
		logger: slog.New(buildHandler(config)),
		config: config,
	}
}

func buildHandler(config Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: config.Level,
	}

	if !config.AddTime {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		}
	}

	switch config.Format {
	case FormatJSON:
		return slog.NewJSONHandler(config.Output, opts)
	default:
		return slog.NewTextHandler(config.Output, opts)
	}
}

// NewDefaultLogger creates a logger with sensible defaults for CLI tools
func NewDefaultLogger() Logger {
	return NewLogger(Config{
		Level:   slog.LevelInfo,
		Format:  FormatText,
		Output:  os.Stderr,
		AddTime: false, // CLI tools typically don't need timestamps
	})
}

// NewQuietLogger creates a logger that only shows errors
func NewQuietLogger() Logger {
	return NewLogger(Config{
		Level:  slog.LevelError,
		Format: FormatText,
		Output: os.Stderr,
	})
}

// NewVerboseLogger creates a logger that shows debug information
func NewVerboseLogger() Logger {
	return NewLogger(Config{
		Level:  slog.LevelDebug,
		Format: FormatText,
		Output: os.Stderr,
	})
}

// NewDisabledLogger creates a logger that discards all output (useful for tests)
func NewDisabledLogger() Logger {
	return NewLogger(Config{
		Level:  slog.Level(1000), // above every real level
		Format: FormatText,
		Output: io.Discard,
	})
}

// GetDebugFilePath returns the debug file path from environment variable or default
func GetDebugFilePath(defaultFileName string) string {
	debugFile := os.Getenv("QUILL_DEBUG_FILE")
	if debugFile == "" {
		debugFile = filepath.Join(os.TempDir(), defaultFileName)
	}
	return debugFile
}

// NewFileLoggerFromEnv creates a file-based logger using standard environment variables.
// Uses QUILL_DEBUG_FILE for the file path (defaults to a temp file) and
// QUILL_DEBUG_LEVEL for the level.
func NewFileLoggerFromEnv(defaultFileName string) Logger {
	debugFile := GetDebugFilePath(defaultFileName)

	var logLevel slog.Level
	switch strings.ToLower(os.Getenv("QUILL_DEBUG_LEVEL")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	default:
		logLevel = slog.LevelError // Default: only errors
	}

	file, err := os.OpenFile(debugFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Fallback to discard if the file can't be opened
		return NewLogger(Config{
			Level:  logLevel,
			Format: FormatText,
			Output: io.Discard,
		})
	}

	return NewLogger(Config{
		Level:   logLevel,
		Format:  FormatText,
		Output:  file,
		AddTime: true,
	})
}

// Debug logs a debug message
func (l *slogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs an info message
func (l *slogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs a warning message
func (l *slogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs an error message
func (l *slogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// With returns a logger with additional attributes
func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{
		logger: l.logger.With(args...),
		config: l.config,
	}
}

// WithGroup returns a logger with a group name
func (l *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{
		logger: l.logger.WithGroup(name),
		config: l.config,
	}
}

// SetLevel updates the logger's level dynamically
func (l *slogLogger) SetLevel(level slog.Level) {
	l.config.Level = level
	l.logger = slog.New(buildHandler(l.config))
}

// Global logger instance
var globalLogger Logger = NewDefaultLogger()

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger Logger) {
	globalLogger = logger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() Logger {
	return globalLogger
}

// Convenience functions that use the global logger
func Debug(msg string, args ...any) {
	globalLogger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	globalLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	globalLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	globalLogger.Error(msg, args...)
}

// NewComponentLogger returns a logger tagged with a component name
func NewComponentLogger(component string) Logger {
	return globalLogger.With("component", component)
}

// NewAPILogger returns a logger for HTTP requests against a backend service
func NewAPILogger(service string) Logger {
	return globalLogger.With(
		"component", "api",
		"service", service,
	)
}
