// Package logging provides the structured logger used across the relay.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger for the process. level accepts zerolog level
// names ("debug", "info", "warn", "error"); unrecognized values fall back to
// info. pretty enables the human-readable console writer for local runs.
func New(level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var w io.Writer = os.Stdout
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Room returns a child logger scoped to one room's events.
func Room(base zerolog.Logger, roomID string) zerolog.Logger {
	return base.With().Str("component", "room").Str("room", roomID).Logger()
}

// Component returns a child logger scoped to a named subsystem.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
