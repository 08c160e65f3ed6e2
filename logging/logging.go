// Package logging configures zerolog the way cmd binaries in this repo
// use it: a colorized console writer on a terminal, an uncolored console
// writer otherwise,
// timestamped, tagged with the app name. Nothing in the core decode
// pipeline imports this package — only host binaries (cmd/...) do.
package logging

import (
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init builds and installs the global zerolog logger for app, returning it
// for callers that want a handle rather than the package-global.
func Init(app string, level zerolog.Level) zerolog.Logger {
	var out zerolog.ConsoleWriter
	if isatty.IsTerminal(os.Stdout.Fd()) {
		out = zerolog.ConsoleWriter{Out: colorable.NewColorableStdout(), TimeFormat: time.RFC3339}
	} else {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339, NoColor: true}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a CLI/env string onto a zerolog.Level, defaulting to
// Info on anything unrecognized rather than erroring — a typo in a log
// level should never stop a capture session from starting.
func ParseLevel(raw string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
