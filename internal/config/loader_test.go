package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agora.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoaderLoad(t *testing.T) {
	t.Run("should fail when explicit config file is missing", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))
		_, err := loader.Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("should load a full config file", func(t *testing.T) {
		path := writeConfig(t, `{
			"mcpServers": {
				"github": {
					"command": "npx",
					"args": ["-y", "@modelcontextprotocol/server-github"],
					"env": {"GITHUB_TOKEN": "placeholder"}
				}
			},
			"ai": {
				"provider": "anthropic",
				"model": "claude-sonnet-4-5",
				"temperature": 0.2,
				"max_tokens": 2048,
				"max_retries": 5
			},
			"logging": {"level": "debug"}
		}`)

		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)

		assert.Equal(t, "anthropic", cfg.AI.Provider)
		assert.Equal(t, "claude-sonnet-4-5", cfg.AI.Model)
		assert.Equal(t, 0.2, cfg.AI.Temperature)
		assert.Equal(t, 2048, cfg.AI.MaxTokens)
		assert.Equal(t, 5, cfg.AI.MaxRetries)
		assert.Equal(t, "debug", cfg.Logging.Level)

		require.Contains(t, cfg.MCPServers, "github")
		server := cfg.MCPServers["github"]
		assert.Equal(t, "npx", server.Command)
		assert.Equal(t, []string{"-y", "@modelcontextprotocol/server-github"}, server.Args)
		assert.Equal(t, "placeholder", server.Env["GITHUB_TOKEN"])
	})

	t.Run("should keep defaults for omitted fields", func(t *testing.T) {
		path := writeConfig(t, `{"ai": {"provider": "openai", "model": "gpt-4o"}}`)

		cfg, err := NewLoader(path).Load()
		require.NoError(t, err)

		assert.Equal(t, "openai", cfg.AI.Provider)
		assert.Equal(t, 4096, cfg.AI.MaxTokens)
		assert.True(t, cfg.MultiAgent.ResetSpecialistHistory)
		assert.NotEmpty(t, cfg.DataDir)
	})

	t.Run("should fail on malformed JSON", func(t *testing.T) {
		path := writeConfig(t, `{"ai": `)
		_, err := NewLoader(path).Load()
		assert.Error(t, err)
	})

	t.Run("should reject invalid loaded values", func(t *testing.T) {
		path := writeConfig(t, `{"ai": {"provider": "skynet", "model": "t800"}}`)
		_, err := NewLoader(path).Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "provider")
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.True(t, cfg.MultiAgent.ResetSpecialistHistory)
	assert.True(t, cfg.Logging.Redaction)
	assert.NoError(t, cfg.Validate())
}
