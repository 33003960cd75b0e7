package connection

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ToolClient is the minimal protocol surface the manager needs from a
// live transport: handshake, tool listing, tool invocation, teardown.
type ToolClient interface {
	// Initialize performs the protocol handshake
	Initialize(ctx context.Context) error

	// ListTools returns all tools the server exposes
	ListTools(ctx context.Context) ([]mcp.Tool, error)

	// CallTool executes a named tool with the given arguments
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)

	// Close shuts the transport down
	Close() error
}

// TransportSpec carries everything needed to open one transport: either
// a subprocess command line or a network endpoint, plus the fully merged
// environment.
type TransportSpec struct {
	ServerID string
	Command  []string
	Endpoint string
	Env      []string // KEY=VALUE pairs
}

// DialFunc opens a transport for a spec. Swappable in tests.
type DialFunc func(ctx context.Context, spec TransportSpec) (ToolClient, error)

// UnsupportedTransportError marks a server definition with no launch
// mode this manager can open. It is fatal for the server until the
// definition is reconfigured.
type UnsupportedTransportError struct {
	ServerID string
	Endpoint string
}

// Error implements the error interface.
func (e *UnsupportedTransportError) Error() string {
	return fmt.Sprintf("unsupported endpoint %q for server %s", e.Endpoint, e.ServerID)
}

// mcpToolClient adapts a mark3labs client to the ToolClient interface.
type mcpToolClient struct {
	client *client.Client
}

// DialMCP is the default dialer. Subprocess servers (a command list or a
// stdio:// endpoint) are launched over stdio; http(s) endpoints use the
// streamable HTTP transport, or SSE when the endpoint path says so.
func DialMCP(ctx context.Context, spec TransportSpec) (ToolClient, error) {
	switch {
	case len(spec.Command) > 0:
		c, err := client.NewStdioMCPClient(spec.Command[0], spec.Env, spec.Command[1:]...)
		if err != nil {
			return nil, fmt.Errorf("failed to launch %s: %w", spec.Command[0], err)
		}
		return &mcpToolClient{client: c}, nil

	case strings.HasPrefix(spec.Endpoint, "stdio://"):
		parts := strings.Fields(strings.TrimPrefix(spec.Endpoint, "stdio://"))
		if len(parts) == 0 {
			return nil, &UnsupportedTransportError{ServerID: spec.ServerID, Endpoint: spec.Endpoint}
		}
		c, err := client.NewStdioMCPClient(parts[0], spec.Env, parts[1:]...)
		if err != nil {
			return nil, fmt.Errorf("failed to launch %s: %w", parts[0], err)
		}
		return &mcpToolClient{client: c}, nil

	case strings.HasPrefix(spec.Endpoint, "http://") || strings.HasPrefix(spec.Endpoint, "https://"):
		var (
			c   *client.Client
			err error
		)
		if strings.HasSuffix(strings.TrimRight(spec.Endpoint, "/"), "/sse") {
			c, err = client.NewSSEMCPClient(spec.Endpoint)
		} else {
			c, err = client.NewStreamableHttpClient(spec.Endpoint)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create client for %s: %w", spec.Endpoint, err)
		}
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start transport for %s: %w", spec.Endpoint, err)
		}
		return &mcpToolClient{client: c}, nil

	default:
		return nil, &UnsupportedTransportError{ServerID: spec.ServerID, Endpoint: spec.Endpoint}
	}
}

// Initialize performs the MCP protocol handshake.
func (c *mcpToolClient) Initialize(ctx context.Context) error {
	req := mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo: mcp.Implementation{
				Name:    "mcpflow",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}

	if _, err := c.client.Initialize(ctx, req); err != nil {
		return fmt.Errorf("failed to initialize MCP protocol: %w", err)
	}
	return nil
}

// ListTools returns all tools the server exposes.
func (c *mcpToolClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return result.Tools, nil
}

// CallTool executes a named tool with the given arguments.
func (c *mcpToolClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      name,
			Arguments: args,
		},
	}

	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("tool call failed: %w", err)
	}
	return result, nil
}

// Close shuts the transport down.
func (c *mcpToolClient) Close() error {
	return c.client.Close()
}
