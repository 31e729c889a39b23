package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading.
type Loader struct {
	configPath string
}

// NewLoader creates a config loader. An empty path selects the default
// location under the user's home directory.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".agora", "agora.json"), nil
}

// Load loads the configuration from file, falling back to defaults when
// the file does not exist.
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		var err error
		configPath, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// An explicitly named file must exist; the default path may not.
		if l.configPath != "" {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return l.finalize(DefaultConfig())
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("AGORA")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return l.finalize(cfg)
}

func (l *Loader) finalize(cfg *Config) (*Config, error) {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".agora")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
