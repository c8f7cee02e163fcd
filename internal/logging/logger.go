package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// New creates a zerolog logger writing to stdout and, when non-nil, to the
// run log file. The file always receives JSON lines so it can be parsed when
// a run is audited.
func New(cfg Config, file io.Writer) zerolog.Logger {
	var console io.Writer = os.Stdout
	if cfg.Format == "console" {
		console = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	output := console
	if file != nil {
		output = zerolog.MultiLevelWriter(console, file)
	}

	return zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel parses a log level string.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
