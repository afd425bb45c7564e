// Package logger provides structured logging for the inputdata tools
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with inputdata-specific functionality
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for interactive runs
	Output     io.Writer
	WithCaller bool
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	// Set global log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	// Operators run these tools interactively
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "inputdata").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// GetZerolog returns the underlying zerolog logger
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Debug logs a debug message
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn logs a warning message
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// Error logs an error message
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal() *zerolog.Event {
	return l.zlog.Fatal()
}

// Component returns a logger scoped to one component (archive, ledger, audit, ...)
func (l *Logger) Component(name string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", name).
			Logger(),
	}
}

// FileLogger returns a logger scoped to one file being processed
func (l *Logger) FileLogger(path string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("file", path).
			Logger(),
	}
}

// LogOperation logs a completed filesystem operation with structured fields
func (l *Logger) LogOperation(op string, path string, duration time.Duration, err error) {
	event := l.zlog.Info().
		Str("operation", op).
		Str("path", path).
		Dur("duration_ms", duration)

	if err != nil {
		event = l.zlog.Error().
			Str("operation", op).
			Str("path", path).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("operation completed")
}

// LogRunStart logs the start of a tool run
func (l *Logger) LogRunStart(tool string, inputdataRoot, targetRoot string, dryRun bool) {
	l.zlog.Info().
		Str("event", "run_start").
		Str("tool", tool).
		Str("inputdata_root", inputdataRoot).
		Str("target_root", targetRoot).
		Bool("dry_run", dryRun).
		Msg("starting")
}

// LogRunDone logs run completion with elapsed time. Emitted without a level
// so it appears even in quiet mode, matching the --timing contract.
func (l *Logger) LogRunDone(tool string, elapsed time.Duration) {
	l.zlog.WithLevel(zerolog.NoLevel).
		Str("event", "run_done").
		Str("tool", tool).
		Dur("elapsed", elapsed).
		Msg("finished")
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		// Initialize with defaults if not set
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}

// LevelFromFlags maps the mutually exclusive verbosity flags to a level
// string. Quiet wins if both are set.
func LevelFromFlags(quiet, verbose bool) string {
	if quiet {
		return "warn"
	}
	if verbose {
		return "debug"
	}
	return "info"
}
