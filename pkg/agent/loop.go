package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hmkim/agora/pkg/mcp"
	"github.com/rs/zerolog"
)

// MaxRounds is the hard ceiling on model/tool round trips per invocation.
// It is the primary defense against runaway tool-call chains.
const MaxRounds = 10

// capFallbackNotice is returned when the round cap is hit and the model has
// produced no usable text at all.
const capFallbackNotice = "Unable to complete the request within the allowed number of tool rounds."

// ToolInvoker is the tool bridge surface the loop depends on.
type ToolInvoker interface {
	Catalog() []mcp.ToolDescriptor
	Invoke(ctx context.Context, name string, arguments map[string]interface{}) (string, error)
}

// loopState is the loop's execution state.
type loopState int

const (
	stateAwaitingModel loopState = iota
	stateExecutingTools
	stateDone
)

func (s loopState) String() string {
	switch s {
	case stateAwaitingModel:
		return "awaiting_model"
	case stateExecutingTools:
		return "executing_tools"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Loop drives one agent's conversation against the LLM with a bounded
// tool-call round-trip loop. The history is private to the loop instance
// and mutated in place across invocations within a session.
type Loop struct {
	provider Provider
	bridge   ToolInvoker
	profile  Profile
	settings ModelSettings
	logger   zerolog.Logger

	history []Message
}

// LoopConfig holds loop configuration.
type LoopConfig struct {
	Provider Provider
	Bridge   ToolInvoker
	Profile  Profile
	Settings ModelSettings
	Logger   zerolog.Logger
}

// NewLoop creates a loop for one agent profile.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Profile.ToolAccess == ToolAccessFull && cfg.Bridge == nil {
		return nil, fmt.Errorf("tool bridge is required for profile %s", cfg.Profile.Role)
	}
	if cfg.Settings.Model == "" {
		cfg.Settings = DefaultSettings()
	}

	return &Loop{
		provider: cfg.Provider,
		bridge:   cfg.Bridge,
		profile:  cfg.Profile,
		settings: cfg.Settings,
		logger:   cfg.Logger.With().Str("role", cfg.Profile.Role).Logger(),
	}, nil
}

// Profile returns the loop's agent profile.
func (l *Loop) Profile() Profile {
	return l.profile
}

// Reset clears the conversation history.
func (l *Loop) Reset() {
	l.history = nil
}

// History returns a copy of the conversation history.
func (l *Loop) History() []Message {
	history := make([]Message, len(l.history))
	copy(history, l.history)
	return history
}

// Run executes one conversational turn. It always returns non-empty text:
// when the round cap is hit the best available model text is returned
// instead of an error.
func (l *Loop) Run(ctx context.Context, input string) (string, error) {
	l.history = append(l.history, Message{Role: "user", Content: input})

	tools := l.tools()
	lastText := ""
	state := stateAwaitingModel

	for round := 0; round < MaxRounds; round++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		response, err := l.completeWithRetry(ctx, tools)
		if err != nil {
			return "", fmt.Errorf("model call failed: %w", err)
		}

		if response.Text != "" {
			lastText = response.Text
		}

		if len(response.ToolCalls) == 0 {
			state = stateDone
			text := response.Text
			if text == "" {
				text = "(empty response)"
			}
			l.history = append(l.history, Message{Role: "assistant", Content: text})
			l.logger.Debug().Int("rounds", round+1).Msg("Turn complete")
			return text, nil
		}

		state = stateExecutingTools
		l.history = append(l.history, Message{
			Role:      "assistant",
			Content:   response.Text,
			ToolCalls: response.ToolCalls,
		})

		// Execute requested calls in the order the model emitted them.
		for _, call := range response.ToolCalls {
			result := l.executeToolCall(ctx, call)
			content := result.Output
			if result.Error != "" {
				content = result.Error
			}
			l.history = append(l.history, Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: result.ToolCallID,
				Metadata:   map[string]interface{}{"tool_name": call.Name},
			})
		}
		state = stateAwaitingModel
	}

	// Round cap reached: force-terminate with the best available text.
	l.logger.Warn().
		Int("max_rounds", MaxRounds).
		Str("state", state.String()).
		Msg("Round cap exceeded, forcing termination")

	text := lastText
	if text == "" {
		text = capFallbackNotice
	}
	l.history = append(l.history, Message{Role: "assistant", Content: text})
	return text, nil
}

// executeToolCall invokes one tool and converts any failure into an error
// description the model can read. Tool failures never abort the loop.
func (l *Loop) executeToolCall(ctx context.Context, call ToolCall) ToolResult {
	l.logger.Info().
		Str("tool", call.Name).
		Interface("arguments", call.Arguments).
		Msg("Tool call")

	result := ToolResult{ToolCallID: call.ID, Name: call.Name}

	if l.bridge == nil {
		result.Error = fmt.Sprintf("error: tool %s is not available to this agent", call.Name)
		return result
	}

	output, err := l.bridge.Invoke(ctx, call.Name, call.Arguments)
	if err != nil {
		l.logger.Warn().Err(err).Str("tool", call.Name).Msg("Tool invocation failed")
		result.Error = fmt.Sprintf("error: %v", err)
		return result
	}

	result.Output = output
	return result
}

// tools returns the catalog visible to this profile.
func (l *Loop) tools() []mcp.ToolDescriptor {
	if l.profile.ToolAccess != ToolAccessFull || l.bridge == nil {
		return nil
	}
	return l.bridge.Catalog()
}

// completeWithRetry calls the provider with exponential backoff on
// transient errors.
func (l *Loop) completeWithRetry(ctx context.Context, tools []mcp.ToolDescriptor) (*Response, error) {
	maxRetries := l.settings.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	request := Request{
		Model:        l.settings.Model,
		Messages:     l.history,
		Tools:        tools,
		Temperature:  l.settings.Temperature,
		MaxTokens:    l.settings.MaxTokens,
		SystemPrompt: l.profile.SystemPrompt,
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		response, err := l.provider.Complete(ctx, request)
		if err == nil {
			return response, nil
		}

		lastErr = err
		if !IsRetryableError(err) {
			return nil, err
		}
		if attempt == maxRetries-1 {
			break
		}

		// Exponential backoff: 1s, 2s, 4s
		delay := time.Duration(1000*(1<<attempt)) * time.Millisecond
		l.logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying after model error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}
