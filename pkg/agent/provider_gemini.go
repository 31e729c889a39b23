package agent

import (
	"context"
	"fmt"

	"github.com/hmkim/agora/pkg/mcp"
	"google.golang.org/genai"
)

// GeminiProvider implements Provider for the Google Gemini API.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Complete makes an API call to Google Gemini.
func (p *GeminiProvider) Complete(ctx context.Context, request Request) (*Response, error) {
	contents := geminiContents(request.Messages)
	config := &genai.GenerateContentConfig{
		Tools: geminiTools(request.Tools),
	}

	if request.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: request.SystemPrompt}},
		}
	}
	if request.Temperature > 0 {
		temp := float32(request.Temperature)
		config.Temperature = &temp
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, request.Model, contents, config)
	if err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates returned")
	}

	text := ""
	toolCalls := []ToolCall{}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Thought {
			continue
		}
		if part.Text != "" {
			text += part.Text
		}
		if part.FunctionCall != nil {
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", len(toolCalls)+1)
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}

	response := &Response{
		Text:      text,
		ToolCalls: toolCalls,
	}
	if resp.UsageMetadata != nil {
		response.Usage = &TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	return response, nil
}

// geminiContents converts conversation messages to genai contents.
// Tool results are surfaced to the model as function responses.
func geminiContents(messages []Message) []*genai.Content {
	var contents []*genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			// Handled via SystemInstruction
		case "user":
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		case "assistant":
			parts := []*genai.Part{}
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: tc.Arguments,
					},
				})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: parts,
			})
		case "tool":
			name := ""
			if tn, ok := msg.Metadata["tool_name"].(string); ok {
				name = tn
			}
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						ID:       msg.ToolCallID,
						Name:     name,
						Response: map[string]any{"result": msg.Content},
					},
				}},
			})
		}
	}

	return contents
}

// geminiTools converts catalog descriptors to genai function declarations.
func geminiTools(tools []mcp.ToolDescriptor) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.InputSchema,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
