// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Level  slog.Level
	Format string
	Output io.Writer
}

func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Format: "text",
		Output: os.Stderr,
	}
}

func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ForComponent returns a logger tagged with the given component name. The
// default logger is resolved on every call so Init may run after package
// initialisation.
func ForComponent(component string) *Logger {
	return &Logger{component: component}
}

// Logger defers to slog.Default at call time.
type Logger struct {
	component string
}

func (l *Logger) get() *slog.Logger {
	return slog.Default().With("component", l.component)
}

func (l *Logger) Debug(msg string, args ...any) { l.get().Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.get().Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.get().Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.get().Error(msg, args...) }
