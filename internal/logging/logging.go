// Package logging owns the process-wide structured loggers. Both the slog
// logger and the zap access logger are configured from KOHORT_LOG_LEVEL,
// KOHORT_LOG_FORMAT and KOHORT_LOG_SOURCE.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const envPrefix = "KOHORT_LOG_"

// settings is the environment-derived logging setup.
type settings struct {
	level  slog.Level
	json   bool
	source bool
}

func (s settings) sink() io.Writer {
	if s.json {
		return os.Stdout
	}
	// Keep stdout clean for report and etl output.
	return os.Stderr
}

func currentSettings() settings {
	return settings{
		level:  parseLevel(os.Getenv(envPrefix + "LEVEL")),
		json:   jsonFormat(),
		source: strings.EqualFold(os.Getenv(envPrefix+"SOURCE"), "true"),
	}
}

var (
	mu       sync.Mutex
	shared   *slog.Logger
	exitFunc = os.Exit
)

// L returns the shared application logger, building it on first use.
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if shared == nil {
		s := currentSettings()
		shared = slog.New(newHandler(s.sink(), s))
	}
	return shared
}

// replace swaps the shared logger and returns the previous one.
func replace(l *slog.Logger) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	prev := shared
	shared = l
	return prev
}

func newHandler(w io.Writer, s settings) slog.Handler {
	opts := &slog.HandlerOptions{Level: s.level, AddSource: s.source}
	if s.json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func jsonFormat() bool {
	format := strings.ToLower(strings.TrimSpace(os.Getenv(envPrefix + "FORMAT")))
	return format == "json" || format == "structured"
}

func parseLevel(value string) slog.Level {
	var level slog.Level
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case "warning":
		level = slog.LevelWarn
	default:
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelInfo
		}
	}
	return level
}

// With returns a child logger carrying args.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// Component tags log lines with the subsystem name.
func Component(name string) *slog.Logger {
	return With("component", name)
}

// Fatal logs at error level and exits with status 1.
func Fatal(msg string, args ...any) {
	L().Error(msg, args...)
	exitFunc(1)
}
