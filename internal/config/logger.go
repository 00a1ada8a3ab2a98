package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Apply configures the global logger. Output always goes to stderr because the
// host mode owns stdout for bridge frames.
func (l Logger) Apply() {
	l.ApplyTo(os.Stderr)
}

// ApplyTo configures the global logger to write to out.
func (l Logger) ApplyTo(out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(l.Level)

	if l.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = out
			w.TimeFormat = "15:04:05"
		}))
		return
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
