// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package log configures the process-wide zerolog logger used for
// diagnostics. Per-item batch status still goes to the caller's writer.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // "debug", "info", "warn", ...; empty falls back to P2KB_LOG_LEVEL
	Output  io.Writer // defaults to os.Stderr
	Service string    // attached to every entry; defaults to "p2kb"
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the global logger exactly once. Later calls are no-ops.
func Configure(cfg Config) {
	once.Do(func() {
		level := zerolog.InfoLevel
		name := cfg.Level
		if name == "" {
			name = os.Getenv("P2KB_LOG_LEVEL")
		}
		if name != "" {
			if parsed, err := zerolog.ParseLevel(name); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		writer := cfg.Output
		if writer == nil {
			writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		}

		service := cfg.Service
		if service == "" {
			service = "p2kb"
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

// WithComponent returns a child logger annotated with the component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str("component", component).Logger()
}
