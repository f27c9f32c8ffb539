// Package logger is the ambient structured-logging stack (spec §7),
// generalized from the teacher's pkg/logger: an slog wrapper with a
// clean text handler and a couple of domain-shaped convenience
// helpers. The gin middleware and per-request/job-pipeline helpers the
// teacher carried are dropped along with the HTTP surface (spec §1
// "Out of scope").
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with convenience methods.
type Logger struct {
	*slog.Logger
}

// LogLevel represents logging levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	defaultLogger *Logger
	currentLevel  = LevelInfo
)

// Init initializes the global logger at the given level ("debug",
// "info", "warn", "error"; "" defaults to info).
func Init(level string) *Logger {
	switch strings.ToLower(level) {
	case "debug":
		currentLevel = LevelDebug
	case "warn", "warning":
		currentLevel = LevelWarn
	case "error":
		currentLevel = LevelError
	default:
		currentLevel = LevelInfo
	}

	var slogLevel slog.Level
	switch currentLevel {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{Key: a.Key, Value: slog.StringValue(a.Value.Time().Format("15:04:05"))}
			}
			if a.Key == slog.LevelKey {
				lvl := a.Value.Any().(slog.Level)
				switch lvl {
				case slog.LevelDebug:
					a.Value = slog.StringValue("DEBUG")
				case slog.LevelInfo:
					a.Value = slog.StringValue("INFO ")
				case slog.LevelWarn:
					a.Value = slog.StringValue("WARN ")
				case slog.LevelError:
					a.Value = slog.StringValue("ERROR")
				}
			}
			return a
		},
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	defaultLogger = &Logger{slog.New(handler)}
	return defaultLogger
}

// Get returns the default logger, initializing it from LOG_LEVEL if
// this is the first call.
func Get() *Logger {
	if defaultLogger == nil {
		Init(os.Getenv("LOG_LEVEL"))
	}
	return defaultLogger
}

// Startup prints a clean one-line startup message at INFO and a
// detailed one at DEBUG, matching the teacher's two-tier startup log.
func (l *Logger) Startup(step, message string, args ...any) {
	if currentLevel <= LevelInfo {
		fmt.Printf("\033[36m[+]\033[0m %s\n", message)
	}
	if currentLevel <= LevelDebug {
		l.Debug("startup step", append([]any{"step", step}, args...)...)
	}
}

// WithContext returns a logger with one additional key/value attached
// to every subsequent record.
func WithContext(key string, value any) *Logger {
	return &Logger{Get().With(key, value)}
}
