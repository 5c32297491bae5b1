// Package logging builds the zerolog logger shared by the CLI and the GUI:
// human readable lines on the console plus the same events appended to a log file.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to console and, when path is set, appending to path.
// The returned closer releases the log file.
func New(console io.Writer, path string, noColor bool) (zerolog.Logger, io.Closer, error) {
	cw := zerolog.ConsoleWriter{Out: console, TimeFormat: time.DateTime, NoColor: noColor}
	if path == "" {
		return zerolog.New(cw).With().Timestamp().Logger(), nopCloser{}, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	fileW := zerolog.ConsoleWriter{Out: f, TimeFormat: time.DateTime, NoColor: true}
	l := zerolog.New(zerolog.MultiLevelWriter(cw, fileW)).With().Timestamp().Logger()
	return l, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
