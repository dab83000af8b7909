// Package logging wires up github.com/zerodha/logf, the structured
// logger thesaheb1-whatomate threads through every handler and
// background worker, for the page server's control loop and its
// auxiliary goroutines.
package logging

import (
	"os"

	"github.com/zerodha/logf"
)

// New returns a logf.Logger writing to stderr at the given level
// ("debug", "info", "warn", "error"; unrecognized values fall back to
// "info").
func New(level string) logf.Logger {
	opts := logf.Opts{
		Writer:          os.Stderr,
		EnableColor:     false,
		EnableCaller:    true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	switch level {
	case "debug":
		opts.Level = logf.DebugLevel
	case "warn":
		opts.Level = logf.WarnLevel
	case "error":
		opts.Level = logf.ErrorLevel
	default:
		opts.Level = logf.InfoLevel
	}
	return logf.New(opts)
}
