package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// toolClient is the per-server surface the bridge depends on.
// *Client satisfies it; tests substitute fakes.
type toolClient interface {
	ServerID() string
	Start(ctx context.Context) error
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error)
	Stop() error
}

// route maps a catalog tool name to the server that owns it. Catalog names
// may be prefixed with the server ID when two servers export the same tool,
// so the original name is carried separately.
type route struct {
	serverID     string
	originalName string
}

// Bridge aggregates the tool catalogs of every configured MCP server behind
// one connection shared by all agents. Only the session controller closes it.
type Bridge struct {
	logger zerolog.Logger

	clients map[string]toolClient
	catalog []ToolDescriptor
	routes  map[string]route

	closeOnce sync.Once
	closeErr  error
}

// BridgeConfig holds bridge configuration.
type BridgeConfig struct {
	Logger zerolog.Logger
}

// NewBridge creates an unconnected bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	return &Bridge{
		logger:  cfg.Logger,
		clients: make(map[string]toolClient),
		routes:  make(map[string]route),
	}
}

// Connect launches every configured server and builds the combined catalog.
// Any server that cannot be started or listed is a startup failure.
func (b *Bridge) Connect(ctx context.Context, servers map[string]ServerSpec) error {
	serverIDs := make([]string, 0, len(servers))
	for id := range servers {
		serverIDs = append(serverIDs, id)
	}
	sort.Strings(serverIDs)

	for _, serverID := range serverIDs {
		client := NewClient(serverID, servers[serverID], b.logger)
		if err := b.register(ctx, client); err != nil {
			b.Close()
			return err
		}
	}

	return nil
}

func (b *Bridge) register(ctx context.Context, client toolClient) error {
	serverID := client.ServerID()
	if serverID == "" {
		return fmt.Errorf("mcp server id is required")
	}

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("failed to connect MCP server %s: %w", serverID, err)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		// The process is already running; reap it here because it never
		// reaches b.clients and Close would miss it.
		if stopErr := client.Stop(); stopErr != nil {
			b.logger.Warn().Err(stopErr).Str("server", serverID).Msg("Failed to stop MCP server")
		}
		return fmt.Errorf("failed to list tools from %s: %w", serverID, err)
	}

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		originalName := tool.Name
		if originalName == "" {
			continue
		}

		catalogName := originalName
		if _, taken := b.routes[catalogName]; taken {
			catalogName = fmt.Sprintf("%s_%s", serverID, originalName)
		}
		tool.Name = catalogName

		b.routes[catalogName] = route{serverID: serverID, originalName: originalName}
		b.catalog = append(b.catalog, tool)
		names = append(names, catalogName)
	}

	b.clients[serverID] = client
	b.logger.Info().
		Str("server", serverID).
		Strs("tools", names).
		Msg("MCP server connected")

	return nil
}

// Catalog returns the combined tool catalog in registration order.
func (b *Bridge) Catalog() []ToolDescriptor {
	catalog := make([]ToolDescriptor, len(b.catalog))
	copy(catalog, b.catalog)
	return catalog
}

// Servers returns the connected server IDs in sorted order.
func (b *Bridge) Servers() []string {
	ids := make([]string, 0, len(b.clients))
	for id := range b.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Invoke routes a tool call to the owning server and returns its textual
// result. Unknown names yield ErrToolNotFound; transport and server-side
// failures are wrapped in InvocationError. Both are recoverable by the caller.
func (b *Bridge) Invoke(ctx context.Context, name string, arguments map[string]interface{}) (string, error) {
	rt, ok := b.routes[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	client := b.clients[rt.serverID]
	output, err := client.CallTool(ctx, rt.originalName, arguments)
	if err != nil {
		return "", &InvocationError{Tool: name, Server: rt.serverID, Err: err}
	}

	b.logger.Debug().
		Str("tool", name).
		Str("server", rt.serverID).
		Msg("Tool invoked")

	return output, nil
}

// Close stops every server process. Safe to call more than once; only the
// first call releases the processes.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		for serverID, client := range b.clients {
			if err := client.Stop(); err != nil {
				b.logger.Warn().Err(err).Str("server", serverID).Msg("Failed to stop MCP server")
				b.closeErr = err
			}
		}
		b.logger.Debug().Msg("Tool bridge closed")
	})
	return b.closeErr
}
