// Package logging builds the status logger shared by all services.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// TimeFormat is the timestamp layout of status lines (MM-DD HH:MM:SS).
const TimeFormat = "01-02 15:04:05"

// New returns a logger writing "MM-DD HH:MM:SS -> message" lines to out and,
// when file is not nil, appending the same lines to file.
// Debug lines are only written when verbose is set.
func New(out io.Writer, file io.Writer, verbose bool) zerolog.Logger {
	writers := []io.Writer{consoleWriter(out)}
	if file != nil {
		writers = append(writers, consoleWriter(file))
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	// Targets may be evaluated concurrently.
	w := zerolog.SyncWriter(zerolog.MultiLevelWriter(writers...))
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// NewJSON returns a logger writing JSON events, for machine consumption.
func NewJSON(out io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.SyncWriter(out)).Level(level).With().Timestamp().Logger()
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	output := zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: TimeFormat}
	output.FormatLevel = func(i interface{}) string {
		s, _ := i.(string)
		switch s {
		case "", zerolog.LevelInfoValue, zerolog.LevelDebugValue:
			return "->"
		default:
			return "-> " + strings.ToUpper(s)
		}
	}
	return output
}

// OpenFile opens path for appending status lines, creating it if needed.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
