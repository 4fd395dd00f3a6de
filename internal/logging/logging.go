// Package logging builds the logger the nodeclosure CLI writes diagnostics to.
//
// The report goes to stdout, so logs always go to a separate writer, normally stderr. Missing dependencies and
// unreadable manifests are logged at warn, skipped deployment-time packages at debug. The level and format are
// set with the --log-level, --log-json and --log-no-color flags.
package logging

import (
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
)

// Config is embedded in the CLI with the prefix "log-".
type Config struct {
	Level   slog.Level `help:"Minimum level of diagnostics written to stderr." default:"warn"`
	JSON    bool       `help:"Write diagnostics as JSON, one object per line."`
	NoColor bool       `help:"Disable colour in console diagnostics."`
}

// New returns a logger writing diagnostics to w.
func New(w io.Writer, config Config) *slog.Logger {
	if config.JSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: config.Level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      config.Level,
		TimeFormat: "15:04:05",
		NoColor:    config.NoColor,
	}))
}
