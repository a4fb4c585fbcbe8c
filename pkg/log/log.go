package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer

	// Sink, when set, additionally receives every line at or above SinkLevel
	Sink      io.Writer
	SinkLevel Level
}

// ZerologLevel maps a Level to zerolog, defaulting to info
func (l Level) ZerologLevel() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel returns the Level for s and whether s named a known level
func ParseLevel(s string) (Level, bool) {
	switch l := Level(s); l {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return l, true
	default:
		return InfoLevel, false
	}
}

// New builds a logger from cfg. Components receive the result (or a child of
// it) explicitly; there is no package-level logger.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if !cfg.JSONOutput {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	if cfg.Sink != nil {
		sinkLevel := cfg.SinkLevel
		if sinkLevel == "" {
			sinkLevel = WarnLevel
		}
		output = zerolog.MultiLevelWriter(output, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: cfg.Sink},
			Level:  sinkLevel.ZerologLevel(),
		})
	}

	return zerolog.New(output).Level(cfg.Level.ZerologLevel()).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// WithComponent creates a child logger with component field
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// WithChannel creates a child logger with channel field
func WithChannel(logger zerolog.Logger, channel string) zerolog.Logger {
	return logger.With().Str("channel", channel).Logger()
}

// WithService creates a child logger with service field
func WithService(logger zerolog.Logger, service string) zerolog.Logger {
	return logger.With().Str("service", service).Logger()
}
