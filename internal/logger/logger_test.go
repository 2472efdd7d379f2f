package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	t.Run("console output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Output: &buf})
		require.NoError(t, err)
		defer logger.Close()

		logger.Info().Str("k", "v").Msg("hello")
		logger.Debug().Msg("hidden")

		assert.Contains(t, buf.String(), `"message":"hello"`)
		assert.NotContains(t, buf.String(), "hidden")
	})

	t.Run("file output with rotation", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "test.log")

		logger, err := New(Config{Level: "debug", File: logFile, MaxSize: 1})
		require.NoError(t, err)

		logger.Info().Msg("first")
		require.NoError(t, logger.Rotate())
		logger.Info().Msg("second")
		require.NoError(t, logger.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "second")
		assert.NotContains(t, string(data), "first")

		entries, err := os.ReadDir(filepath.Dir(logFile))
		require.NoError(t, err)
		assert.Len(t, entries, 2, "rotation keeps a backup file")
	})

	t.Run("redaction with configured secrets", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{
			Level:     "info",
			Console:   true,
			Output:    &buf,
			Redaction: true,
			Secrets:   []string{"my-shared-secret"},
		})
		require.NoError(t, err)
		require.NotNil(t, logger.redactor)

		logger.Info().Str("detail", "secret is my-shared-secret").Msg("leak")
		assert.NotContains(t, buf.String(), "my-shared-secret")
	})
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Console: true, Output: &buf})
	require.NoError(t, err)

	child := logger.With().Str("component", "test").Logger()
	child.Info().Msg("before")
	assert.Empty(t, buf.String())

	assert.Equal(t, zerolog.DebugLevel, logger.SetLevel("debug"))
	child.Info().Msg("after")
	assert.Contains(t, buf.String(), "after")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 7, cfg.MaxAge)
}
