package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Debug levels. Live and verbose both map to zerolog debug.
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (store opened, cameras seeded)
	LevelLive    = 2 // Store mutations (camera saved, moved, deleted)
	LevelVerbose = 3 // Same output as LevelLive
	LevelTrace   = 4 // Adds every camera collection read and commit
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config holds logging configuration.
type Config struct {
	Level      int    // debug level 0-4
	Format     string // "json" or "console"
	TimeFormat string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Format:     FormatConsole,
		TimeFormat: time.RFC3339,
	}
}

// ZerologLevel maps a debug level (0-4) to a zerolog level.
// 0 = disabled
// 1 = info
// 2, 3 = debug
// 4 = trace
func ZerologLevel(level int) zerolog.Level {
	switch {
	case level <= LevelOff:
		return zerolog.Disabled
	case level == LevelInfo:
		return zerolog.InfoLevel
	case level < LevelTrace:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// NewWithWriter creates a logger writing to out.
func NewWithWriter(cfg Config, out io.Writer) zerolog.Logger {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	if cfg.Format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
	}
	level := ZerologLevel(cfg.Level)
	// The global level defaults to debug and would drop trace events.
	if level < zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(level)
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("app", "fieldtools").
		Logger()
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
