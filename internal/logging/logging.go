// Package logging provides the shared zerolog setup for looper.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config controls global logger behavior.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string

	// Format is the output format (json, console).
	Format string

	// EnableCaller adds caller information to log lines.
	EnableCaller bool

	// Output overrides the destination (default stderr).
	Output io.Writer
}

var (
	mu   sync.RWMutex
	root zerolog.Logger = newLogger(Config{Level: "info", Format: "console"})
)

// Init configures the package-level root logger. Safe to call more than
// once; later calls replace the root.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	root = newLogger(cfg)
}

// Component returns a child logger tagged with a component name.
func Component(name string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.With().Str("component", name).Logger()
}

func newLogger(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.ToLower(cfg.Format) != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level := parseLevel(cfg.Level)
	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.EnableCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

func parseLevel(value string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "trace":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}
