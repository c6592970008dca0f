// Package logging provides structured logging for the Dread Remote Console.
// It implements a centralized logging strategy with configurable log levels
// and output formats on top of log/slog.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"time"
)

// LogLevel represents the severity of log messages
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
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

// Logger provides structured logging with component context
type Logger struct {
	logger    *slog.Logger
	level     LogLevel
	component string
}

// Config represents logging configuration
type Config struct {
	Level     LogLevel
	Format    string // "json" or "text"
	Output    string // "stdout", "stderr", or file path
	Component string
}

// DefaultConfig returns a sensible default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:     InfoLevel,
		Format:    "text",
		Output:    "stderr",
		Component: "console",
	}
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	var output *os.File
	switch config.Output {
	case "stdout":
		output = os.Stdout
	case "stderr", "":
		output = os.Stderr
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		output = file
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel(config.Level),
	}

	var handler slog.Handler
	switch config.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		logger:    slog.New(handler),
		level:     config.Level,
		component: config.Component,
	}, nil
}

// slogLevel converts our LogLevel to slog.Level
func slogLevel(level LogLevel) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent creates a new logger for a specific component
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		logger:    l.logger.With(slog.String("component", component)),
		level:     l.level,
		component: component,
	}
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		logger:    l.logger.With(slog.Any(key, value)),
		level:     l.level,
		component: l.component,
	}
}

// Debug logs a debug level message
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.level <= DebugLevel {
		l.logger.Debug(msg, args...)
	}
}

// Info logs an info level message
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.level <= InfoLevel {
		l.logger.Info(msg, args...)
	}
}

// Warn logs a warning level message
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.level <= WarnLevel {
		l.logger.Warn(msg, args...)
	}
}

// Error logs an error level message
func (l *Logger) Error(msg string, args ...interface{}) {
	if l.level <= ErrorLevel {
		l.logger.Error(msg, args...)
	}
}

// LogConnectionAttempt logs connection attempt details
func (l *Logger) LogConnectionAttempt(addr string) {
	l.Info("Attempting connection",
		slog.String("addr", addr),
		slog.Time("timestamp", time.Now()))
}

// LogConnectionSuccess logs successful session establishment
func (l *Logger) LogConnectionSuccess(addr string, apiVersion int, duration time.Duration) {
	l.Info("Connection established successfully",
		slog.String("addr", addr),
		slog.Int("api_version", apiVersion),
		slog.Duration("connection_duration", duration))
}

// LogConnectionFailure logs connection failure with detailed context
func (l *Logger) LogConnectionFailure(addr string, err error, duration time.Duration) {
	l.Error("Connection failed",
		slog.String("addr", addr),
		slog.String("error", err.Error()),
		slog.Duration("attempt_duration", duration))
}

// LogConfigError logs configuration-related errors
func (l *Logger) LogConfigError(operation string, err error) {
	l.Error("Configuration error",
		slog.String("operation", operation),
		slog.String("error", err.Error()))
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger with the specified configuration
func InitGlobalLogger(config Config) error {
	logger, err := NewLogger(config)
	if err != nil {
		return fmt.Errorf("failed to initialize global logger: %w", err)
	}
	globalLogger = logger
	return nil
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		// Fallback to default configuration if not initialized
		globalLogger, _ = NewLogger(DefaultConfig())
	}
	return globalLogger
}
