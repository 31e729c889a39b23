package mcp

import (
	"errors"
	"fmt"
)

// ToolDescriptor describes one tool exposed by an MCP server.
// The catalog is immutable once fetched; it is refreshed only on reconnect.
type ToolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// ServerSpec describes how to launch one MCP server process.
type ServerSpec struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ErrToolNotFound is returned when an invoked tool name is absent
// from the last-fetched catalog.
var ErrToolNotFound = errors.New("tool not found")

// InvocationError wraps a transport or server-side failure of a tool call.
type InvocationError struct {
	Tool   string
	Server string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %s on server %s failed: %v", e.Tool, e.Server, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
