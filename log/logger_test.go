package log

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kochabx/blogkit/errors"
	"github.com/kochabx/blogkit/log/writer"
)

func TestLog(t *testing.T) {
	logger := New()
	logger.Debug().Msg("test debug message")
	logger.Info().Str("key", "value").Msg("test info with field")
	logger.Error().Err(errors.Domain(400, "test")).Msg("test error")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, WithLevel(zerolog.InfoLevel)).Component("cache")

	logger.Debug().Msg("dropped")
	logger.Info().Str("key", "/categories").Msg("fetched")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cache", line["component"])
	assert.Equal(t, "/categories", line["key"])
	assert.Equal(t, "fetched", line["message"])
}

func TestGlobalLog(t *testing.T) {
	prev := G
	defer SetGlobalLogger(prev)

	var buf bytes.Buffer
	SetGlobalLogger(NewWriter(&buf))
	SetGlobalLevel(zerolog.WarnLevel)

	Info().Msg("hidden")
	Warn().Err(errors.Domain(404, "missing")).Msg("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestFromConfig(t *testing.T) {
	logger, err := FromConfig(Config{Level: "debug", Desensitize: true})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
	assert.NotNil(t, logger.Hook())

	_, err = FromConfig(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFileLog(t *testing.T) {
	dir := t.TempDir()
	logger, err := FromConfig(Config{
		Level: "info",
		File: &FileConfig{
			Dir:        dir,
			Name:       "test",
			Rotate:     writer.RotateBySize,
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info().Msg("test file log")
	assert.FileExists(t, filepath.Join(dir, "test.log"))
}

func TestMultiLog(t *testing.T) {
	logger, err := FromConfig(Config{
		File: &FileConfig{
			Dir:     t.TempDir(),
			Name:    "multi",
			Console: true,
		},
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info().Str("type", "multi").Msg("test multi output log")
}

func TestRotateModeText(t *testing.T) {
	var m writer.RotateMode
	require.NoError(t, m.UnmarshalText([]byte("SIZE")))
	assert.Equal(t, writer.RotateBySize, m)
	assert.Error(t, m.UnmarshalText([]byte("daily")))
}
