package agent

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/hmkim/agora/pkg/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns canned responses in sequence, repeating the last
// one when the script runs out.
type scriptedProvider struct {
	responses []*Response
	requests  []Request
	err       error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, request Request) (*Response, error) {
	p.requests = append(p.requests, request)
	if p.err != nil {
		return nil, p.err
	}
	idx := len(p.requests) - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return p.responses[idx], nil
}

// fakeBridge records invocations and returns canned outputs.
type fakeBridge struct {
	catalog []mcp.ToolDescriptor
	outputs map[string]string
	errs    map[string]error
	invoked []string
}

func (b *fakeBridge) Catalog() []mcp.ToolDescriptor { return b.catalog }

func (b *fakeBridge) Invoke(ctx context.Context, name string, arguments map[string]interface{}) (string, error) {
	b.invoked = append(b.invoked, name)
	if err, ok := b.errs[name]; ok {
		return "", err
	}
	if out, ok := b.outputs[name]; ok {
		return out, nil
	}
	return "", fmt.Errorf("%w: %s", mcp.ErrToolNotFound, name)
}

func testLoop(t *testing.T, provider Provider, bridge ToolInvoker, profile Profile) *Loop {
	t.Helper()
	loop, err := NewLoop(LoopConfig{
		Provider: provider,
		Bridge:   bridge,
		Profile:  profile,
		Settings: ModelSettings{Model: "test-model", MaxRetries: 1},
		Logger:   zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	return loop
}

func TestNewLoop(t *testing.T) {
	t.Run("should require a provider", func(t *testing.T) {
		_, err := NewLoop(LoopConfig{Profile: WriterProfile()})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "provider")
	})

	t.Run("should require a bridge for full tool access", func(t *testing.T) {
		_, err := NewLoop(LoopConfig{
			Provider: &scriptedProvider{},
			Profile:  AnalystProfile(),
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "bridge")
	})

	t.Run("should allow no bridge for tool-less profiles", func(t *testing.T) {
		loop, err := NewLoop(LoopConfig{
			Provider: &scriptedProvider{},
			Profile:  WriterProfile(),
		})
		require.NoError(t, err)
		assert.NotNil(t, loop)
	})
}

func TestLoopRun(t *testing.T) {
	t.Run("should return text when model makes no tool calls", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*Response{{Text: "hello there"}}}
		loop := testLoop(t, provider, nil, WriterProfile())

		result, err := loop.Run(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, "hello there", result)
		assert.Len(t, provider.requests, 1)
	})

	t.Run("should execute tool calls then return final text", func(t *testing.T) {
		bridge := &fakeBridge{
			catalog: []mcp.ToolDescriptor{{Name: "list_commits"}},
			outputs: map[string]string{"list_commits": "3 commits"},
		}
		provider := &scriptedProvider{responses: []*Response{
			{ToolCalls: []ToolCall{{ID: "c1", Name: "list_commits", Arguments: map[string]interface{}{}}}},
			{Text: "you made 3 commits"},
		}}
		loop := testLoop(t, provider, bridge, AnalystProfile())

		result, err := loop.Run(context.Background(), "how many commits?")
		require.NoError(t, err)
		assert.Equal(t, "you made 3 commits", result)
		assert.Equal(t, []string{"list_commits"}, bridge.invoked)

		// Second request must carry the tool result back to the model.
		second := provider.requests[1]
		found := false
		for _, msg := range second.Messages {
			if msg.Role == "tool" && msg.Content == "3 commits" {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("should execute multiple tool calls in model order", func(t *testing.T) {
		bridge := &fakeBridge{
			outputs: map[string]string{"a": "1", "b": "2"},
		}
		provider := &scriptedProvider{responses: []*Response{
			{ToolCalls: []ToolCall{
				{ID: "c1", Name: "a"},
				{ID: "c2", Name: "b"},
			}},
			{Text: "done"},
		}}
		loop := testLoop(t, provider, bridge, AnalystProfile())

		_, err := loop.Run(context.Background(), "go")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, bridge.invoked)
	})

	t.Run("should continue after unknown tool", func(t *testing.T) {
		bridge := &fakeBridge{}
		provider := &scriptedProvider{responses: []*Response{
			{ToolCalls: []ToolCall{{ID: "c1", Name: "no_such_tool"}}},
			{Text: "recovered"},
		}}
		loop := testLoop(t, provider, bridge, AnalystProfile())

		result, err := loop.Run(context.Background(), "go")
		require.NoError(t, err)
		assert.Equal(t, "recovered", result)

		// The failure is surfaced to the model as a tool-result message.
		second := provider.requests[1]
		found := false
		for _, msg := range second.Messages {
			if msg.Role == "tool" {
				assert.Contains(t, msg.Content, "error")
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("should enforce the round cap and return best text", func(t *testing.T) {
		bridge := &fakeBridge{outputs: map[string]string{"spin": "more"}}
		provider := &scriptedProvider{responses: []*Response{
			{Text: "working on it", ToolCalls: []ToolCall{{ID: "c", Name: "spin"}}},
		}}
		loop := testLoop(t, provider, bridge, AnalystProfile())

		result, err := loop.Run(context.Background(), "loop forever")
		require.NoError(t, err)
		assert.Equal(t, "working on it", result)
		assert.Len(t, provider.requests, MaxRounds)
		assert.Len(t, bridge.invoked, MaxRounds)
	})

	t.Run("should return fallback notice when cap is hit with no text", func(t *testing.T) {
		bridge := &fakeBridge{outputs: map[string]string{"spin": "more"}}
		provider := &scriptedProvider{responses: []*Response{
			{ToolCalls: []ToolCall{{ID: "c", Name: "spin"}}},
		}}
		loop := testLoop(t, provider, bridge, AnalystProfile())

		result, err := loop.Run(context.Background(), "loop forever")
		require.NoError(t, err)
		assert.NotEmpty(t, result)
		assert.Contains(t, result, "Unable to complete")
	})

	t.Run("should not expose tools to tool-less profiles", func(t *testing.T) {
		bridge := &fakeBridge{catalog: []mcp.ToolDescriptor{{Name: "x"}}}
		provider := &scriptedProvider{responses: []*Response{{Text: "ok"}}}
		loop := testLoop(t, provider, bridge, WriterProfile())

		_, err := loop.Run(context.Background(), "write")
		require.NoError(t, err)
		assert.Empty(t, provider.requests[0].Tools)
	})

	t.Run("should fail on canceled context", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*Response{{Text: "ok"}}}
		loop := testLoop(t, provider, nil, WriterProfile())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := loop.Run(ctx, "hi")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("should propagate non-retryable model errors", func(t *testing.T) {
		provider := &scriptedProvider{err: fmt.Errorf("invalid API key")}
		loop := testLoop(t, provider, nil, WriterProfile())

		_, err := loop.Run(context.Background(), "hi")
		assert.Error(t, err)
	})
}

func TestLoopHistory(t *testing.T) {
	t.Run("should keep history across invocations", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*Response{{Text: "first"}, {Text: "second"}}}
		loop := testLoop(t, provider, nil, WriterProfile())

		_, err := loop.Run(context.Background(), "one")
		require.NoError(t, err)
		_, err = loop.Run(context.Background(), "two")
		require.NoError(t, err)

		history := loop.History()
		require.Len(t, history, 4)
		assert.Equal(t, "one", history[0].Content)
		assert.Equal(t, "first", history[1].Content)
		assert.Equal(t, "two", history[2].Content)
	})

	t.Run("should clear history on reset", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*Response{{Text: "hi"}}}
		loop := testLoop(t, provider, nil, WriterProfile())

		_, err := loop.Run(context.Background(), "one")
		require.NoError(t, err)
		loop.Reset()
		assert.Empty(t, loop.History())
	})

	t.Run("should return a defensive copy", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*Response{{Text: "hi"}}}
		loop := testLoop(t, provider, nil, WriterProfile())

		_, err := loop.Run(context.Background(), "one")
		require.NoError(t, err)

		history := loop.History()
		history[0].Content = "mutated"
		assert.Equal(t, "one", loop.History()[0].Content)
	})
}
