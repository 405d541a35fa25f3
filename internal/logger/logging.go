// Package logger provides modifications to charmbracelet/log's default logger to be used in various files/packages.
//
// Everything logs to stderr: in IPC mode stdout carries the msgpack stream.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// output is where every logger created here writes.
var output io.Writer = os.Stderr

// New creates a new default charm log with a component prefix, using the level and
// formatter currently set by Setup.
func New(prefix string) *log.Logger {
	return NewWithConfig(prefix, log.GetLevel(), false, true, formatter)
}

// NewWithConfig creates a new charm log with custom config
func NewWithConfig(prefix string, level log.Level, caller bool, showTimestamp bool, fmt log.Formatter) *log.Logger {
	return log.NewWithOptions(output, log.Options{
		Prefix:          prefix,
		Level:           level,
		ReportCaller:    caller,
		ReportTimestamp: showTimestamp,
		Formatter:       fmt,
	})
}

var formatter = log.TextFormatter

// ParseFormatter maps "text", "json" and "logfmt" to a charm formatter.
func ParseFormatter(name string) (log.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return log.TextFormatter, fmt.Errorf("unknown log formatter %q", name)
	}
}

// Setup configures the package level logger from config values. debug overrides level.
func Setup(level, format string, debug bool) error {
	log.SetOutput(output)

	f, fmtErr := ParseFormatter(format)
	formatter = f
	log.SetFormatter(f)

	lvl, lvlErr := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if lvlErr != nil {
		lvl = log.WarnLevel
	}
	if debug {
		lvl = log.DebugLevel
	}
	log.SetLevel(lvl)
	log.SetReportTimestamp(debug || lvl <= log.InfoLevel)

	if fmtErr != nil {
		return fmtErr
	}
	if lvlErr != nil {
		return fmt.Errorf("unknown log level %q", level)
	}
	return nil
}
