package config

import "fmt"

var validProviders = map[string]bool{
	"gemini":    true,
	"anthropic": true,
	"openai":    true,
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("invalid ai.provider: %q (expected gemini, anthropic, or openai)", c.AI.Provider)
	}
	if c.AI.Model == "" {
		return fmt.Errorf("ai.model cannot be empty")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be between 0 and 2")
	}
	if c.AI.MaxTokens < 0 {
		return fmt.Errorf("ai.max_tokens cannot be negative")
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("ai.max_retries cannot be negative")
	}

	for name, server := range c.MCPServers {
		if name == "" {
			return fmt.Errorf("mcpServers contains an empty server name")
		}
		if server.Command == "" {
			return fmt.Errorf("mcpServers.%s.command cannot be empty", name)
		}
	}

	return nil
}
