package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should write to a log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "agora.log")

		lg, err := New(Config{Level: "info", File: path})
		require.NoError(t, err)
		defer lg.Close()

		zl := lg.GetZerolog()
		zl.Info().Str("component", "test").Msg("hello")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello")
		assert.Contains(t, string(data), "component")
	})

	t.Run("should redact secrets in file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agora.log")

		lg, err := New(Config{Level: "info", File: path, Redaction: true})
		require.NoError(t, err)
		defer lg.Close()

		zl := lg.GetZerolog()
		zl.Info().Str("key", "sk-abcdefghij1234567890ABCD").Msg("auth")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "sk-abcdefghij1234567890ABCD")
		assert.Contains(t, string(data), "[REDACTED]")
	})

	t.Run("should respect the configured level", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agora.log")

		lg, err := New(Config{Level: "warn", File: path})
		require.NoError(t, err)
		defer lg.Close()

		zl := lg.GetZerolog()
		zl.Info().Msg("too quiet")
		zl.Warn().Msg("loud enough")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "too quiet")
		assert.Contains(t, string(data), "loud enough")
	})

	t.Run("should fall back to info on an unknown level", func(t *testing.T) {
		lg, err := New(Config{Level: "verbose"})
		require.NoError(t, err)
		defer lg.Close()
		assert.Equal(t, "info", lg.GetZerolog().GetLevel().String())
	})

	t.Run("should close without a file", func(t *testing.T) {
		lg, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)
		assert.NoError(t, lg.Close())
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Redaction)
}
