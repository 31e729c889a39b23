package agent

import (
	"context"
	"fmt"
)

// Provider is the contract with the LLM completion API.
type Provider interface {
	// Complete makes one completion call.
	Complete(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name.
	Name() string
}

// ProviderFactory creates providers by name.
type ProviderFactory struct{}

// NewProvider creates a provider for the named backend.
func (f *ProviderFactory) NewProvider(ctx context.Context, provider, apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required for provider %s", provider)
	}

	switch provider {
	case "gemini":
		return NewGeminiProvider(ctx, apiKey)
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// APIKeyEnvVar returns the environment variable supplying the credential
// for the named provider.
func APIKeyEnvVar(provider string) (string, error) {
	switch provider {
	case "gemini":
		return "GEMINI_API_KEY", nil
	case "anthropic":
		return "ANTHROPIC_API_KEY", nil
	case "openai":
		return "OPENAI_API_KEY", nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}
}
