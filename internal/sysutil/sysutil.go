// Package sysutil holds process-level setup for the server binary: the
// global zerolog logger and optional .env loading.
package sysutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a LOG_LEVEL value (case-insensitive) onto a zerolog
// level. "warning" is accepted for warn; blank or unknown values are info.
func ParseLevel(lvl string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLogLevel sets the global zerolog level from a LOG_LEVEL value.
func SetLogLevel(lvl string) { zerolog.SetGlobalLevel(ParseLevel(lvl)) }

// SetupLogger points the global logger at w, tags every event with service,
// and applies level. Pretty selects the human-readable console writer.
func SetupLogger(w io.Writer, level string, pretty bool, service string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	SetLogLevel(level)

	l := zerolog.New(w).With().Timestamp().Str("service", service).Logger()
	log.Logger = l
	return l
}

// LoadDotenv loads the first env file in paths that exists (".env" when
// none are given) without overriding variables already set. It returns the
// file it loaded, or "" when none existed.
func LoadDotenv(paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", err
		}
		if err := godotenv.Load(p); err != nil {
			return "", err
		}
		return p, nil
	}
	return "", nil
}
