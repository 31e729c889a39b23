package config

// Config represents the main Agora configuration.
type Config struct {
	// MCP server launch specifications, keyed by server name
	MCPServers map[string]MCPServerConfig `json:"mcpServers" mapstructure:"mcpServers"`

	// AI provider settings
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Multi-agent behavior
	MultiAgent MultiAgentConfig `json:"multi_agent" mapstructure:"multi_agent"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// MCPServerConfig describes how to launch one MCP server.
type MCPServerConfig struct {
	Command string            `json:"command" mapstructure:"command"`
	Args    []string          `json:"args" mapstructure:"args"`
	Env     map[string]string `json:"env" mapstructure:"env"`
}

// AIConfig holds LLM provider configuration.
type AIConfig struct {
	Provider    string  `json:"provider" mapstructure:"provider"` // gemini, anthropic, openai
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries  int     `json:"max_retries" mapstructure:"max_retries"`
}

// MultiAgentConfig holds multi-agent mode configuration.
type MultiAgentConfig struct {
	// ResetSpecialistHistory clears each specialist's conversation history
	// at the start of every pipeline execution. Specialists keep memory
	// across turns only when this is disabled.
	ResetSpecialistHistory bool `json:"reset_specialist_history" mapstructure:"reset_specialist_history"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MCPServers: map[string]MCPServerConfig{},
		AI: AIConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			Temperature: 0.7,
			MaxTokens:   4096,
			MaxRetries:  3,
		},
		MultiAgent: MultiAgentConfig{
			ResetSpecialistHistory: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			Redaction: true,
		},
	}
}
