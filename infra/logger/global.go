package logger

import (
	"sync"
)

var (
	globalLogger *SystemLogger
	mu           sync.RWMutex
)

// Options configures the global logger
type Options struct {
	Level       LogLevel
	Environment string
	Version     string
	Sink        Sink
}

// InitGlobalLogger replaces the global system logger
func InitGlobalLogger(opts Options) *SystemLogger {
	level := opts.Level
	if level == "" {
		level = LevelInfo
	}
	if opts.Environment == "development" && opts.Level == "" {
		level = LevelDebug
	}

	l := NewSystemLogger(opts.Sink, SystemLoggerConfig{
		EnableConsole: true,
		EnableSink:    opts.Sink != nil,
		MinLevel:      level,
		Service:       "telepay",
		Version:       opts.Version,
		Environment:   opts.Environment,
	})

	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return l
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *SystemLogger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	// Fallback to console-only logger if not initialized
	return InitGlobalLogger(Options{Level: LevelInfo, Environment: "development", Version: "1.0.0"})
}

// Debug logs a debug message using the global logger
func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().Debug(message, ctx...)
}

// Info logs an info message using the global logger
func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().Info(message, ctx...)
}

// Warn logs a warning message using the global logger
func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().Warn(message, ctx...)
}

// Error logs an error message using the global logger
func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Error(message, err, ctx...)
}

// Fatal logs a fatal message using the global logger and exits
func Fatal(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Fatal(message, err, ctx...)
}

// WithContext creates a context logger from the global logger
func WithContext(ctx LogContext) *ContextLogger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithProvider creates a context logger with provider
func WithProvider(provider string) *ContextLogger {
	return WithContext(LogContext{Provider: provider})
}
