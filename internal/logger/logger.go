// Package logger wraps the process-wide structured logger. Output is
// always JSON so log lines can be shipped without a parsing step.
package logger

import (
	"log/slog"
	"os"

	"notebook-rag-platform/internal/config"
)

// root is usable before Init so early failures still log structured.
var root = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Init configures the process logger from the environment. Debug mode
// lowers the level and records source locations.
func Init(cfg *config.Config) {
	level := slog.LevelInfo
	addSource := false
	if cfg.GinMode == "debug" {
		level = slog.LevelDebug
		addSource = true
	}

	root = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
	}))
	root.Info("logger configured", "level", level.String())
}

// With returns a child logger carrying the given attributes, for
// request- or job-scoped logging.
func With(args ...any) *slog.Logger {
	return root.With(args...)
}

func Debug(msg string, args ...any) { root.Debug(msg, args...) }
func Info(msg string, args ...any)  { root.Info(msg, args...) }
func Warn(msg string, args ...any)  { root.Warn(msg, args...) }
func Error(msg string, args ...any) { root.Error(msg, args...) }
