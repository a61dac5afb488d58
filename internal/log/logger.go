// Package log configures the process-wide structured logger.
//
// All docsmith packages log through zerolog children derived from a single
// base logger so every entry carries the service name and component. The
// base logger is configured exactly once; later calls to Configure are
// no-ops, which keeps tests and library callers from fighting over state.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for the global logger.
type Config struct {
	Level   string    // "trace".."error"; empty falls back to DOCSMITH_LOG_LEVEL, then "info"
	Format  string    // "console" for human output, anything else means JSON
	Output  io.Writer // defaults to os.Stderr
	Service string    // service name attached to every entry; defaults to "docsmith"
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the global logger exactly once.
func Configure(cfg Config) {
	once.Do(func() {
		level := zerolog.InfoLevel
		if cfg.Level != "" {
			if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
				level = parsed
			}
		} else if env := os.Getenv("DOCSMITH_LOG_LEVEL"); env != "" {
			if parsed, err := zerolog.ParseLevel(env); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		writer := cfg.Output
		if writer == nil {
			writer = os.Stderr
		}
		if cfg.Format == "console" {
			writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
		}

		service := cfg.Service
		if service == "" {
			service = "docsmith"
		}

		base = zerolog.New(writer).With().
			Timestamp().
			Str("service", service).
			Logger()
	})
}

func logger() zerolog.Logger {
	Configure(Config{})
	return base
}

// Base returns the configured base logger.
func Base() zerolog.Logger {
	return logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str("component", component).Logger()
}
