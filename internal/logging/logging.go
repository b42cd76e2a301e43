// Package logging builds the zerolog logger used by the CLI and adapts it to
// render observers.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/forPelevin/lipsync/internal/types"
)

// New returns a logger writing to w. format is "console" or "json".
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: noColor()}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: want console or json", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Observer forwards render events to logger. Stage entries are logged with
// the stage name so a reader can follow the render step by step.
func Observer(logger zerolog.Logger) types.Observer {
	return func(ev types.Event) {
		e := logger.WithLevel(level(ev.Level)).Str("stage", ev.Stage.String())
		if ev.Detail != "" {
			e = e.Str("detail", ev.Detail)
		}
		e.Msg(ev.Message)
	}
}

func level(l types.Level) zerolog.Level {
	switch l {
	case types.LevelDebug:
		return zerolog.DebugLevel
	case types.LevelWarn:
		return zerolog.WarnLevel
	case types.LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func noColor() bool {
	return os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb"
}
