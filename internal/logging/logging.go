// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger. pretty selects the console writer,
// otherwise lines are JSON. Unknown levels fall back to info.
func Setup(level string, pretty bool) {
	SetupWriter(os.Stderr, level, pretty)
}

func SetupWriter(w io.Writer, level string, pretty bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	SetLevel(level)
}

// SetLevel changes the global level; used on config reload.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
