// Package logger holds the process-wide structured logger used by the
// allocator tiers and the memctl command.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// L is the global logger instance. It's initialized to discard all output by default.
// Call Init() to enable logging.
var L = slog.New(slog.DiscardHandler)

// AllocEnabled gates the per-operation allocation logs. It is seeded from the
// MEMKIT_LOG_ALLOC environment variable and may be flipped by Init.
var AllocEnabled = os.Getenv("MEMKIT_LOG_ALLOC") != ""

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Output  io.Writer  // Destination. Default: os.Stderr
	JSON    bool       // JSON handler instead of text
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
	Alloc   bool       // Also log every allocation-path event at debug level
}

// Init configures logging. Call from main() before any log calls.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) {
	if !opts.Enabled {
		L = slog.New(slog.DiscardHandler)
		return
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := opts.Level
	if level == 0 && !opts.Alloc {
		level = slog.LevelInfo
	}
	if opts.Alloc {
		level = slog.LevelDebug
		AllocEnabled = true
	}

	hopts := &slog.HandlerOptions{Level: level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(out, hopts))
		return
	}
	L = slog.New(slog.NewTextHandler(out, hopts))
}

// Alloc logs an allocation-path event when MEMKIT_LOG_ALLOC (or Options.Alloc) is set.
func Alloc(msg string, args ...any) {
	if AllocEnabled {
		L.Debug(msg, args...)
	}
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
