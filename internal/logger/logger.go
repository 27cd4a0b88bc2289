// Package logger builds the zerolog logger shared by every component.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Formats accepted by [Config.Format].
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error; empty means warn
	Format string // console or json; empty means console
	Output io.Writer
}

// New creates a logger from cfg. Output defaults to stderr so log lines
// never mix with command output on stdout.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	switch cfg.Format {
	case "", FormatConsole:
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(output),
		}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q (want %s or %s)", cfg.Format, FormatConsole, FormatJSON)
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// ParseLevel maps a config level name to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zerolog.WarnLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "off", "disabled":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
