package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// JSON-RPC 2.0 messages for the MCP stdio transport
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      interface{} `json:"id,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      interface{}     `json:"id"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	protocolVersion = "2024-11-05"
	requestTimeout  = 30 * time.Second
)

// Client is a stdio JSON-RPC client for a single MCP server process.
// The server inherits the parent environment overlaid with the spec's env.
type Client struct {
	serverID string
	spec     ServerSpec
	logger   zerolog.Logger

	mu      sync.Mutex
	process *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Scanner
	id      int
	pending map[int]chan *rpcResponse
}

// NewClient creates a client for one MCP server.
func NewClient(serverID string, spec ServerSpec, logger zerolog.Logger) *Client {
	return &Client{
		serverID: serverID,
		spec:     spec,
		logger:   logger.With().Str("mcp_server", serverID).Logger(),
		pending:  make(map[int]chan *rpcResponse),
	}
}

// ServerID returns the configured server identifier.
func (c *Client) ServerID() string {
	return c.serverID
}

// Start launches the server process and performs the initialize handshake.
// Calling Start on a running client is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.process != nil {
		c.mu.Unlock()
		return nil
	}

	cmd := exec.Command(c.spec.Command, c.spec.Args...)
	cmd.Env = mergeEnv(os.Environ(), c.spec.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to start %s: %w", c.spec.Command, err)
	}

	c.process = cmd
	c.stdin = stdin
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	c.stdout = scanner
	c.mu.Unlock()

	go c.listen()

	if err := c.initialize(ctx); err != nil {
		c.Stop()
		return fmt.Errorf("initialize handshake failed: %w", err)
	}

	c.logger.Debug().Str("command", c.spec.Command).Msg("MCP server started")
	return nil
}

func (c *Client) listen() {
	for c.stdout.Scan() {
		line := c.stdout.Bytes()
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			c.logger.Error().Err(err).Msg("Failed to unmarshal MCP response")
			continue
		}

		// Server-initiated notifications carry no ID
		if id, ok := resp.ID.(float64); ok {
			c.mu.Lock()
			ch, exists := c.pending[int(id)]
			if exists {
				delete(c.pending, int(id))
				ch <- &resp
			}
			c.mu.Unlock()
		}
	}
}

func (c *Client) initialize(ctx context.Context) error {
	params := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]interface{}{
			"name":    "agora",
			"version": "0.1.0",
		},
	}
	if _, err := c.call(ctx, "initialize", params); err != nil {
		return err
	}
	return c.notify("notifications/initialized", nil)
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (*rpcResponse, error) {
	c.mu.Lock()
	c.id++
	id := c.id
	ch := make(chan *rpcResponse, 1)
	c.pending[id] = ch
	stdin := c.stdin
	c.mu.Unlock()

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	}

	data, err := json.Marshal(req)
	if err != nil {
		c.removePending(id)
		return nil, err
	}

	if _, err := io.WriteString(stdin, string(data)+"\n"); err != nil {
		c.removePending(id)
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("MCP error (%d): %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		c.removePending(id)
		return nil, ctx.Err()
	case <-time.After(requestTimeout):
		c.removePending(id)
		return nil, fmt.Errorf("MCP request timeout for %s", method)
	}
}

// removePending discards a call slot that will never be fulfilled. The
// response channel is buffered, so a racing listen() send cannot block.
func (c *Client) removePending(id int) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) notify(method string, params interface{}) error {
	c.mu.Lock()
	stdin := c.stdin
	c.mu.Unlock()

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	_, err = io.WriteString(stdin, string(data)+"\n")
	return err
}

// ListTools fetches the tool catalog from the server.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var listResult struct {
		Tools []struct {
			Name        string                 `json:"name"`
			Description string                 `json:"description"`
			InputSchema map[string]interface{} `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &listResult); err != nil {
		return nil, err
	}

	descriptors := make([]ToolDescriptor, 0, len(listResult.Tools))
	for _, t := range listResult.Tools {
		descriptors = append(descriptors, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	return descriptors, nil
}

// CallTool invokes a tool and flattens the result content blocks to text.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error) {
	if arguments == nil {
		arguments = map[string]interface{}{}
	}

	resp, err := c.call(ctx, "tools/call", map[string]interface{}{
		"name":      name,
		"arguments": arguments,
	})
	if err != nil {
		return "", err
	}

	var callResult struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(resp.Result, &callResult); err != nil {
		return "", fmt.Errorf("failed to parse tool result: %w", err)
	}

	text := flattenContent(callResult.Content)
	if callResult.IsError {
		return "", fmt.Errorf("tool reported error: %s", text)
	}

	return text, nil
}

// Stop kills the server process. Safe to call on a stopped client.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.process != nil && c.process.Process != nil {
		err := c.process.Process.Kill()
		// Reap the killed process so it does not linger as a zombie.
		_ = c.process.Wait()
		c.process = nil
		return err
	}
	return nil
}

func flattenContent(blocks []struct {
	Type string `json:"type"`
	Text string `json:"text"`
}) string {
	text := ""
	for _, block := range blocks {
		if block.Text == "" {
			continue
		}
		if text != "" {
			text += "\n"
		}
		text += block.Text
	}
	return text
}

// mergeEnv overlays config-provided variables on the base environment.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	merged := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		keep := true
		for key := range overrides {
			if len(kv) > len(key) && kv[:len(key)] == key && kv[len(key)] == '=' {
				keep = false
				break
			}
		}
		if keep {
			merged = append(merged, kv)
		}
	}
	for key, value := range overrides {
		merged = append(merged, key+"="+value)
	}
	return merged
}
