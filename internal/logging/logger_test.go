package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/muster/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("JSON format renames the error key", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.NewWithWriter(&buf, slog.LevelInfo, "json")
		logger.Info("failed", "error", errors.New("boom"))

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "boom", line["err"])
		assert.NotContains(t, line, "error")
	})

	t.Run("Text format filters by level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.NewWithWriter(&buf, slog.LevelWarn, "text")
		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})
}

func TestParseLevel(t *testing.T) {
	level, err := logging.ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = logging.ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = logging.ParseLevel("loud")
	assert.Error(t, err)
}
