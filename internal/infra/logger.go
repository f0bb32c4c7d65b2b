package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logging contract shared across packages.
type Logger = zerolog.Logger

// NewLogger returns the service logger: JSON on stdout, or a console writer
// at debug level in development.
func NewLogger(appEnv string) zerolog.Logger {
	if appEnv == "development" {
		return NewConsoleLogger(os.Stdout, true)
	}
	return zerolog.New(os.Stdout).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Str("service", "converter").
		Logger()
}

// NewConsoleLogger writes human readable lines to w. The CLI logs to stderr
// so stdout stays free for results.
func NewConsoleLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	l := zerolog.New(io.Discard)
	return &l
}
