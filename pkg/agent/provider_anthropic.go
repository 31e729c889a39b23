package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements Provider for Anthropic Claude.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Complete makes an API call to Anthropic Claude.
func (p *AnthropicProvider) Complete(ctx context.Context, request Request) (*Response, error) {
	messages := []anthropic.MessageParam{}

	for _, msg := range request.Messages {
		switch {
		case msg.Role == "system":
			// System prompt handled separately
		case msg.Role == "tool":
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		case msg.Role == "assistant" && len(msg.ToolCalls) > 0:
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		case msg.Role == "assistant":
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		case msg.Role == "user":
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(request.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}

	if request.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: request.SystemPrompt},
		}
	}
	if request.Temperature > 0 {
		params.Temperature = anthropic.Float(request.Temperature)
	}

	if len(request.Tools) > 0 {
		tools := []anthropic.ToolUnionParam{}
		for _, tool := range request.Tools {
			toolParam := anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.InputSchema["properties"],
				},
			}
			if required, ok := tool.InputSchema["required"].([]interface{}); ok {
				names := make([]string, 0, len(required))
				for _, v := range required {
					if s, ok := v.(string); ok {
						names = append(names, s)
					}
				}
				toolParam.InputSchema.Required = names
			}
			tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
		}
		params.Tools = tools
	}

	response, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	text := ""
	toolCalls := []ToolCall{}

	for _, block := range response.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += b.Text
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &args); err != nil {
				return nil, fmt.Errorf("failed to parse tool input: %w", err)
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}

	return &Response{
		Text:      text,
		ToolCalls: toolCalls,
		Usage: &TokenUsage{
			InputTokens:  int(response.Usage.InputTokens),
			OutputTokens: int(response.Usage.OutputTokens),
		},
	}, nil
}
