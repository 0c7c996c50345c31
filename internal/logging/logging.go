// Package logging wires zerolog the way the rest of the pack wires it: a
// single constructor producing a configured logger, pretty-printed for a
// terminal and JSON otherwise, timestamped and caller-tagged.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the constructed logger.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool
}

// New returns a configured zerolog.Logger. Components that need a
// sub-logger scoped to a component name should call
// log.With().Str("component", name).Logger() on the result, matching the
// scheduler/logger pairing this is grounded on.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	return zerolog.New(output).With().Timestamp().Caller().Logger()
}
