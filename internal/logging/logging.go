// Package logging holds the process logger. Server code logs through the
// package functions; per-connection code logs through Session loggers so
// every line carries the session id.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the process logger. Init replaces it.
var Logger = newLogger(Config{Level: zerolog.InfoLevel})

// Config selects the level, destination and format of log output.
type Config struct {
	Level zerolog.Level
	// Output defaults to os.Stderr.
	Output io.Writer
	// Pretty writes colored console lines instead of JSON.
	Pretty bool
}

// Init replaces the process logger. Loggers already handed out by
// Session or Component keep their old configuration.
func Init(cfg Config) {
	Logger = newLogger(cfg)
}

func newLogger(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel maps debug, info, warn or error (any case) to a level.
// Anything else is info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func Debug() *zerolog.Event { return Logger.Debug() }
func Info() *zerolog.Event  { return Logger.Info() }
func Warn() *zerolog.Event  { return Logger.Warn() }
func Error() *zerolog.Event { return Logger.Error() }

// Session returns a logger tagged with a session id.
func Session(sessionID string) zerolog.Logger {
	return Logger.With().Str("session", sessionID).Logger()
}

// Component returns a logger tagged with the subsystem that owns it.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
