// ABOUTME: Structured logger construction for the CLI and daemon.
// ABOUTME: charmbracelet/log renders slog records to stderr or a lumberjack-rotated file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the destination and verbosity.
type Options struct {
	// Level is debug, info, warn or error.
	Level string
	// File, when set, receives logs through a rotating writer instead of stderr.
	File string
	// Prefix tags every line (for example "sync").
	Prefix string
}

// ParseLevel maps a level name onto a charm log level.
func ParseLevel(s string) (charmlog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return charmlog.InfoLevel, nil
	case "debug":
		return charmlog.DebugLevel, nil
	case "warn", "warning":
		return charmlog.WarnLevel, nil
	case "error":
		return charmlog.ErrorLevel, nil
	}
	return charmlog.InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// New builds a *slog.Logger. The returned closer flushes and closes the log
// file, if one was opened.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0750); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		w, closer = rotating, rotating
	}

	return slog.New(NewHandler(w, level, opts.Prefix)), closer, nil
}

// NewHandler returns a charm log handler writing to w.
func NewHandler(w io.Writer, level charmlog.Level, prefix string) slog.Handler {
	return charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
}

// Discard is a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
