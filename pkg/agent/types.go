package agent

import (
	"strings"

	"github.com/hmkim/agora/pkg/mcp"
)

// Message represents one entry in a conversation history.
type Message struct {
	Role       string                 `json:"role"`
	Content    string                 `json:"content"`
	ToolCalls  []ToolCall             `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResult is the outcome of executing one tool call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TokenUsage tracks token consumption for one completion.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ModelSettings configures completion behavior.
type ModelSettings struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	MaxRetries  int     `json:"max_retries,omitempty"`
}

// DefaultSettings returns default model settings.
func DefaultSettings() ModelSettings {
	return ModelSettings{
		Model:       "gemini-2.5-flash",
		Temperature: 0.7,
		MaxTokens:   4096,
		MaxRetries:  3,
	}
}

// Request contains the parameters for one completion call.
type Request struct {
	Model        string
	Messages     []Message
	Tools        []mcp.ToolDescriptor
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Response contains the model's reply to one completion call.
// An empty ToolCalls slice means the turn is final.
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// IsRetryableError reports whether an LLM call error is transient.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	// Network errors
	if strings.Contains(msg, "ECONNRESET") || strings.Contains(msg, "ETIMEDOUT") ||
		strings.Contains(msg, "connection refused") {
		return true
	}

	// Rate limits
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return true
	}

	// Server errors
	if strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504") {
		return true
	}

	return false
}
