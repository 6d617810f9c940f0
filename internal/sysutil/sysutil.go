// Package sysutil holds process-level helpers used by the server binary.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel configures the global zerolog level based on a string value.
// Supported values (case-insensitive): debug, info, warn, error, fatal, panic.
// Anything else means info.
func SetLogLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// LogOptions describes the process logger.
type LogOptions struct {
	Level   string
	Pretty  bool // human-readable console output for local runs
	Service string
	Version string
	Out     io.Writer // defaults to os.Stderr
}

// SetupLogging builds the process logger, installs it as log.Logger and as
// the fallback for zerolog.Ctx, and returns it.
func SetupLogging(opt LogOptions) zerolog.Logger {
	SetLogLevel(opt.Level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opt.Out
	if out == nil {
		out = os.Stderr
	}
	if opt.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if opt.Service != "" {
		ctx = ctx.Str("service", opt.Service)
	}
	if opt.Version != "" {
		ctx = ctx.Str("version", opt.Version)
	}
	l := ctx.Logger()

	log.Logger = l
	zerolog.DefaultContextLogger = &log.Logger
	return l
}

// FirstNonEmpty returns the first non-blank string from a variadic list.
// If all values are blank, it returns "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
