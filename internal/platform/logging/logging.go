package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how verbosely the process logs.
type Options struct {
	Level string
	Dev   bool
	// File enables rotated file output alongside stdout when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the process logger. Development gets a console writer, every
// other environment writes JSON.
func New(opts Options) zerolog.Logger {
	return NewWithWriter(os.Stdout, opts)
}

// NewWithWriter is New with an explicit primary writer.
func NewWithWriter(out io.Writer, opts Options) zerolog.Logger {
	var primary io.Writer = out
	if opts.Dev {
		primary = zerolog.ConsoleWriter{Out: out}
	}

	writers := []io.Writer{primary}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 28),
			Compress:   true,
		})
	}

	var w io.Writer = primary
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(w).Level(ParseLevel(opts.Level)).With().
		Timestamp().
		Str("service", "pillcare").
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
