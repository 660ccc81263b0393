// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger output.
type Options struct {
	Env   string
	Level string
	// Debug forces debug level regardless of Level.
	Debug bool
	// File, when set, receives a JSON copy of every line with size-based rotation.
	File string
}

// Setup installs the global logger and returns a closer for the log file, if any.
func Setup(opts Options) io.Closer {
	var console io.Writer = os.Stdout
	if opts.Env == "development" {
		console = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	var closer io.Closer = nopCloser{}
	out := console
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, rotating)
		closer = rotating
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(ParseLevel(opts.Level, opts.Debug))

	log.Info().
		Str("level", zerolog.GlobalLevel().String()).
		Str("file", opts.File).
		Msg("Logger initialized")

	return closer
}

// ParseLevel resolves the configured level, defaulting to info.
func ParseLevel(level string, debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
