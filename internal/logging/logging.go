// Package logging configures the process-wide zerolog setup.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the root logger. Level accepts zerolog's level names
// ("debug", "info", "warn", ...); anything unparsable falls back to info.
// If w is nil the logger writes human-readable console output to stderr,
// which is what you want when running the gateway next to a chess GUI.
func New(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Sub returns a child logger tagged with the subsystem that owns it, so a
// grep for subsystem=gateway pulls out one component's lines.
func Sub(l zerolog.Logger, subsystem string) zerolog.Logger {
	return l.With().Str("subsystem", subsystem).Logger()
}
