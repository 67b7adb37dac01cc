// Package logging builds the zerolog loggers used across comterm.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// DebugFile is where the interactive terminal logs when verbose, since the
// screen owns stdout and stderr.
const DebugFile = "comterm-debug.log"

// TimeFormat is the timestamp layout of log lines.
const TimeFormat = "15:04:05.000"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a debug logger writing to path, or DebugFile when path is
// empty. When verbose is false it returns a disabled logger. The closer
// must be closed when the session ends.
func New(verbose bool, path string) (zerolog.Logger, io.Closer, error) {
	if !verbose {
		return zerolog.Nop(), nopCloser{}, nil
	}
	if path == "" {
		path = DebugFile
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to create debug log: %w", err)
	}
	return Console(f, true), f, nil
}

// Console returns a plain console-format logger on w. Verbose enables debug
// level; otherwise only warnings and errors are written.
func Console(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: TimeFormat}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
