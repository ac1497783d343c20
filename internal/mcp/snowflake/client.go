package snowflake

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

const requestTimeout = 120 * time.Second

// Client calls the tools of an MCP server over streamable HTTP.
type Client struct {
	conn *mcpclient.Client
}

// NewClient creates a client for the MCP endpoint. The session starts with Initialize.
func NewClient(endpoint string) (*Client, error) {
	conn, err := mcpclient.NewStreamableHttpClient(endpoint, transport.WithHTTPTimeout(requestTimeout))
	if err != nil {
		return nil, fmt.Errorf("invalid mcp endpoint: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Initialize performs the MCP handshake
func (c *Client) Initialize(ctx context.Context) error {
	if err := c.conn.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mcp transport: %w", err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{
		Name:    "nl2sql",
		Version: "1.0.0",
	}
	if _, err := c.conn.Initialize(ctx, req); err != nil {
		return fmt.Errorf("initialize failed: %w", err)
	}
	return nil
}

// CallTool invokes a tool and decodes the JSON text of its first text block into out.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any, out any) error {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments

	result, err := c.conn.CallTool(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	text := firstText(result.Content)
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return fmt.Errorf("%s: %s", name, text)
	}

	if out == nil {
		return nil
	}
	if text == "" {
		return fmt.Errorf("%s: empty tool result", name)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%s: failed to decode tool result: %w", name, err)
	}
	return nil
}

// Close terminates the MCP session
func (c *Client) Close() error {
	return c.conn.Close()
}

func firstText(content []mcp.Content) string {
	for _, block := range content {
		if tc, ok := mcp.AsTextContent(block); ok {
			return tc.Text
		}
	}
	return ""
}
