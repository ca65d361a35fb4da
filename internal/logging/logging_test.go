package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLevel(t *testing.T) {
	cases := []struct {
		level int
		want  zerolog.Level
	}{
		{-1, zerolog.Disabled},
		{LevelOff, zerolog.Disabled},
		{LevelInfo, zerolog.InfoLevel},
		{LevelLive, zerolog.DebugLevel},
		{LevelVerbose, zerolog.DebugLevel},
		{LevelTrace, zerolog.TraceLevel},
		{9, zerolog.TraceLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ZerologLevel(tc.level), "level %d", tc.level)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: LevelInfo, Format: FormatJSON}, &buf)
	log.Info().Int("identifier", 3).Msg("camera saved")
	log.Debug().Msg("hidden at info level")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var evt map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &evt))
	assert.Equal(t, "camera saved", evt["message"])
	assert.Equal(t, "fieldtools", evt["app"])
	assert.Equal(t, 3.0, evt["identifier"])
}

func TestNewWithWriter_Off(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: LevelOff, Format: FormatJSON}, &buf)
	log.Error().Msg("nothing")
	assert.Zero(t, buf.Len())
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: LevelLive, Format: FormatConsole}, &buf)
	log.Debug().Msg("camera moved")
	assert.Contains(t, buf.String(), "camera moved")
}

func TestNewWithWriter_TraceOnlyAtLevelTrace(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: LevelVerbose, Format: FormatJSON}, &buf)
	log.Trace().Msg("cameras read")
	assert.Zero(t, buf.Len())

	log = NewWithWriter(Config{Level: LevelTrace, Format: FormatJSON}, &buf)
	log.Trace().Msg("cameras read")
	assert.Contains(t, buf.String(), "cameras read")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, FormatConsole, cfg.Format)
	assert.NotEmpty(t, cfg.TimeFormat)
}
