package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory toolClient.
type fakeClient struct {
	serverID  string
	tools     []ToolDescriptor
	startErr  error
	listErr   error
	callErr   error
	calls     []string
	stopCount int
	stopErr   error
}

func (f *fakeClient) ServerID() string { return f.serverID }

func (f *fakeClient) Start(ctx context.Context) error { return f.startErr }

func (f *fakeClient) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

func (f *fakeClient) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (string, error) {
	f.calls = append(f.calls, name)
	if f.callErr != nil {
		return "", f.callErr
	}
	return "output from " + name, nil
}

func (f *fakeClient) Stop() error {
	f.stopCount++
	return f.stopErr
}

func newTestBridge() *Bridge {
	return NewBridge(BridgeConfig{Logger: zerolog.New(os.Stdout).Level(zerolog.Disabled)})
}

func TestBridgeRegister(t *testing.T) {
	t.Run("should build catalog from server tools", func(t *testing.T) {
		b := newTestBridge()
		client := &fakeClient{
			serverID: "github",
			tools: []ToolDescriptor{
				{Name: "list_commits", Description: "List commits"},
				{Name: "get_activity", Description: "Get activity"},
			},
		}

		err := b.register(context.Background(), client)
		require.NoError(t, err)

		catalog := b.Catalog()
		require.Len(t, catalog, 2)
		assert.Equal(t, "list_commits", catalog[0].Name)
		assert.Equal(t, "get_activity", catalog[1].Name)
		assert.Equal(t, []string{"github"}, b.Servers())
	})

	t.Run("should prefix duplicate tool names with server id", func(t *testing.T) {
		b := newTestBridge()
		first := &fakeClient{
			serverID: "alpha",
			tools:    []ToolDescriptor{{Name: "search"}},
		}
		second := &fakeClient{
			serverID: "beta",
			tools:    []ToolDescriptor{{Name: "search"}},
		}

		require.NoError(t, b.register(context.Background(), first))
		require.NoError(t, b.register(context.Background(), second))

		catalog := b.Catalog()
		require.Len(t, catalog, 2)
		assert.Equal(t, "search", catalog[0].Name)
		assert.Equal(t, "beta_search", catalog[1].Name)
	})

	t.Run("should skip tools with empty names", func(t *testing.T) {
		b := newTestBridge()
		client := &fakeClient{
			serverID: "srv",
			tools:    []ToolDescriptor{{Name: ""}, {Name: "real"}},
		}

		require.NoError(t, b.register(context.Background(), client))
		assert.Len(t, b.Catalog(), 1)
	})

	t.Run("should fail when server cannot start", func(t *testing.T) {
		b := newTestBridge()
		client := &fakeClient{
			serverID: "broken",
			startErr: fmt.Errorf("spawn failed"),
		}

		err := b.register(context.Background(), client)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "broken")
	})

	t.Run("should fail when tool listing fails", func(t *testing.T) {
		b := newTestBridge()
		client := &fakeClient{
			serverID: "broken",
			listErr:  fmt.Errorf("list failed"),
		}

		err := b.register(context.Background(), client)
		assert.Error(t, err)
	})

	t.Run("should stop a started server when tool listing fails", func(t *testing.T) {
		b := newTestBridge()
		client := &fakeClient{
			serverID: "leaky",
			listErr:  fmt.Errorf("list failed"),
		}

		require.Error(t, b.register(context.Background(), client))
		require.NoError(t, b.Close())
		assert.Equal(t, 1, client.stopCount)
	})
}

func TestBridgeInvoke(t *testing.T) {
	t.Run("should route invocation to owning server", func(t *testing.T) {
		b := newTestBridge()
		client := &fakeClient{
			serverID: "github",
			tools:    []ToolDescriptor{{Name: "list_commits"}},
		}
		require.NoError(t, b.register(context.Background(), client))

		output, err := b.Invoke(context.Background(), "list_commits", map[string]interface{}{"limit": 5})
		require.NoError(t, err)
		assert.Equal(t, "output from list_commits", output)
		assert.Equal(t, []string{"list_commits"}, client.calls)
	})

	t.Run("should route prefixed name to original tool", func(t *testing.T) {
		b := newTestBridge()
		first := &fakeClient{serverID: "alpha", tools: []ToolDescriptor{{Name: "search"}}}
		second := &fakeClient{serverID: "beta", tools: []ToolDescriptor{{Name: "search"}}}
		require.NoError(t, b.register(context.Background(), first))
		require.NoError(t, b.register(context.Background(), second))

		_, err := b.Invoke(context.Background(), "beta_search", nil)
		require.NoError(t, err)
		assert.Empty(t, first.calls)
		assert.Equal(t, []string{"search"}, second.calls)
	})

	t.Run("should return ErrToolNotFound for unknown name", func(t *testing.T) {
		b := newTestBridge()
		_, err := b.Invoke(context.Background(), "missing", nil)
		assert.ErrorIs(t, err, ErrToolNotFound)
	})

	t.Run("should wrap server failure in InvocationError", func(t *testing.T) {
		b := newTestBridge()
		client := &fakeClient{
			serverID: "github",
			tools:    []ToolDescriptor{{Name: "list_commits"}},
			callErr:  fmt.Errorf("server crashed"),
		}
		require.NoError(t, b.register(context.Background(), client))

		_, err := b.Invoke(context.Background(), "list_commits", nil)
		require.Error(t, err)

		var invErr *InvocationError
		require.True(t, errors.As(err, &invErr))
		assert.Equal(t, "list_commits", invErr.Tool)
		assert.Equal(t, "github", invErr.Server)
	})
}

func TestBridgeClose(t *testing.T) {
	t.Run("should stop every server exactly once", func(t *testing.T) {
		b := newTestBridge()
		client := &fakeClient{serverID: "srv", tools: []ToolDescriptor{{Name: "x"}}}
		require.NoError(t, b.register(context.Background(), client))

		require.NoError(t, b.Close())
		require.NoError(t, b.Close())
		assert.Equal(t, 1, client.stopCount)
	})

	t.Run("should report stop failure", func(t *testing.T) {
		b := newTestBridge()
		client := &fakeClient{serverID: "srv", stopErr: fmt.Errorf("kill failed")}
		require.NoError(t, b.register(context.Background(), client))

		assert.Error(t, b.Close())
	})
}

func TestBridgeCatalogCopy(t *testing.T) {
	t.Run("should return a defensive copy", func(t *testing.T) {
		b := newTestBridge()
		client := &fakeClient{serverID: "srv", tools: []ToolDescriptor{{Name: "x"}}}
		require.NoError(t, b.register(context.Background(), client))

		catalog := b.Catalog()
		catalog[0].Name = "mutated"
		assert.Equal(t, "x", b.Catalog()[0].Name)
	})
}
