// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/mcpgate/internal/log"
	"github.com/tombee/mcpgate/pkg/httpclient"
)

const (
	// ClientName is the implementation name sent during initialize.
	ClientName = "mcpgate"

	// DefaultToolTimeout bounds a single tool call.
	DefaultToolTimeout = 60 * time.Second

	// DefaultInitTimeout bounds the initialize handshake.
	DefaultInitTimeout = 30 * time.Second

	logNotificationMethod = "notifications/message"
)

// Client wraps an MCP server connection and provides methods to interact with it.
type Client struct {
	// serverName is the unique identifier for this MCP server
	serverName string

	// transport is how the server is reached
	transport TransportType

	// client is the underlying MCP protocol client
	client *client.Client

	// capabilities tracks what features the server supports
	capabilities *ServerCapabilities

	// timeout is the default timeout for tool calls
	timeout time.Duration

	traffic *TrafficLog
	logger  *slog.Logger
}

// ClientConfig configures an MCP client connection.
type ClientConfig struct {
	// Provider is the server definition with secret references already resolved
	Provider *ProviderConfig

	// Timeout is the default timeout for tool calls (defaults to 60s)
	Timeout time.Duration

	// Version is reported as the client version during initialize
	Version string

	// Traffic receives stderr lines, log notifications and HTTP exchanges. Optional.
	Traffic *TrafficLog

	// Logger is the logger to use. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewClient connects to the provider and performs the initialize handshake.
// STDIO providers are launched through the platform shell.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	p := cfg.Provider
	if p == nil {
		return nil, fmt.Errorf("provider config is required")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}

	c := &Client{
		serverName: p.Name,
		transport:  p.Transport(),
		timeout:    timeout,
		traffic:    cfg.Traffic,
		logger:     log.WithServer(log.WithComponent(cfg.Logger, "mcp-client"), p.Name),
	}

	var (
		mcpClient *client.Client
		err       error
	)
	switch p.Transport() {
	case TransportHTTP:
		mcpClient, err = client.NewStreamableHttpClient(p.URL,
			transport.WithHTTPHeaders(cloneMap(p.Headers)),
			transport.WithHTTPBasicClient(c.httpClient()),
		)
	case TransportHTTPSSE:
		mcpClient, err = client.NewSSEMCPClient(p.URL,
			transport.WithHeaders(cloneMap(p.Headers)),
			transport.WithHTTPClient(c.httpClient()),
		)
	default:
		mcpClient, err = newStdioClient(p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	c.client = mcpClient
	mcpClient.OnNotification(c.handleNotification)

	if err := mcpClient.Start(ctx); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	if stderr, ok := client.GetStderr(mcpClient); ok {
		go c.drainStderr(stderr)
	}

	initCtx, cancel := context.WithTimeout(ctx, DefaultInitTimeout)
	defer cancel()
	if err := c.initialize(initCtx, cfg.Version); err != nil {
		mcpClient.Close()
		return nil, err
	}

	c.logger.Debug("MCP client connected", log.TransportKey, string(c.transport))
	return c, nil
}

// newStdioClient wraps the provider command in the platform shell with the
// command's directory prepended to PATH.
func newStdioClient(p *ProviderConfig) (*client.Client, error) {
	commandDir, err := ResolveCommandDir(commandPath(p))
	if err != nil {
		return nil, err
	}

	shell, err := CreateCommand(append([]string{p.Command}, p.Args...))
	if err != nil {
		return nil, err
	}
	if p.WorkingDirectory != "" && isDir(p.WorkingDirectory) {
		shell[2] = changeDirectory(runtime.GOOS, p.WorkingDirectory) + shell[2]
	}

	env := MergeEnvironment(os.Environ(), commandDir, p.Env)
	return client.NewStdioMCPClient(shell[0], env, shell[1:]...)
}

// changeDirectory returns the shell prefix that enters dir before the command runs.
func changeDirectory(goos, dir string) string {
	if goos == "windows" {
		return fmt.Sprintf("cd /d \"%s\" && ", dir)
	}
	return fmt.Sprintf("cd \"%s\" && ", dir)
}

// httpClient builds the HTTP client for remote transports with the traffic
// tap underneath logging. Streaming responses rule out a client timeout.
func (c *Client) httpClient() *http.Client {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = c.timeout
	cfg.RetryAttempts = 0
	cfg.UserAgent = ClientName
	cfg.WrapTransport = func(base http.RoundTripper) http.RoundTripper {
		return c.traffic.RoundTripper(c.serverName, base)
	}

	hc, err := httpclient.New(cfg)
	if err != nil {
		c.logger.Warn("falling back to default HTTP client", log.Error(err))
		return &http.Client{Transport: c.traffic.RoundTripper(c.serverName, nil)}
	}
	hc.Timeout = 0
	return hc
}

// drainStderr forwards the server's stderr to the traffic log until EOF.
func (c *Client) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		c.logger.Debug("MCP server stderr", "line", line)
		c.traffic.Record(c.serverName, line)
	}
}

// handleNotification forwards logging notifications to the traffic log.
func (c *Client) handleNotification(n mcp.JSONRPCNotification) {
	if n.Method != logNotificationMethod {
		c.logger.Debug("MCP notification", "method", n.Method)
		return
	}

	fields := n.Params.AdditionalFields
	level, _ := fields["level"].(string)
	message := notificationText(fields["data"])

	switch level {
	case "error", "critical", "alert", "emergency":
		c.logger.Error(message)
	case "debug":
		c.logger.Debug(message)
	default:
		c.logger.Info(message)
	}
	c.traffic.Record(c.serverName, message)
}

func notificationText(data any) string {
	switch v := data.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

// initialize sends the initialize request to the MCP server.
func (c *Client) initialize(ctx context.Context, version string) error {
	if version == "" {
		version = "dev"
	}

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    ClientName,
				Version: version,
			},
		},
	}

	if _, err := c.client.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("initialize request failed: %w", err)
	}

	serverCaps := c.client.GetServerCapabilities()
	c.capabilities = &ServerCapabilities{Logging: serverCaps.Logging != nil}
	if serverCaps.Tools != nil {
		c.capabilities.Tools = &ListChangedCapability{
			ListChanged: serverCaps.Tools.ListChanged,
		}
	}
	return nil
}

// ListTools retrieves the list of available tools from the MCP server.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make([]ToolDefinition, len(result.Tools))
	for i, tool := range result.Tools {
		schema, err := inputSchema(tool)
		if err != nil {
			return nil, err
		}
		tools[i] = ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
			Server:      c.serverName,
		}
	}
	return tools, nil
}

// inputSchema prefers the raw schema and otherwise re-encodes the typed one.
func inputSchema(tool mcp.Tool) (json.RawMessage, error) {
	if len(tool.RawInputSchema) > 0 {
		return tool.RawInputSchema, nil
	}
	b, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input schema for %s: %w", tool.Name, err)
	}
	return b, nil
}

// CallTool executes an MCP tool with the given arguments.
func (c *Client) CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	mcpReq := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      req.Name,
			Arguments: req.Arguments,
		},
	}

	result, err := c.client.CallTool(ctx, mcpReq)
	if err != nil {
		return nil, fmt.Errorf("tool call failed: %w", err)
	}

	response := &ToolCallResponse{
		IsError: result.IsError,
		Content: make([]ContentItem, len(result.Content)),
	}
	for i, content := range result.Content {
		item, err := convertContent(content)
		if err != nil {
			return nil, err
		}
		response.Content[i] = item
	}
	return response, nil
}

func convertContent(content mcp.Content) (ContentItem, error) {
	if text, ok := mcp.AsTextContent(content); ok {
		return ContentItem{Type: text.Type, Text: text.Text}, nil
	}
	if image, ok := mcp.AsImageContent(content); ok {
		return ContentItem{Type: image.Type, Data: image.Data, MimeType: image.MIMEType}, nil
	}

	// Fallback: round-trip through JSON to pick out the common fields
	b, err := json.Marshal(content)
	if err != nil {
		return ContentItem{}, fmt.Errorf("failed to marshal content: %w", err)
	}
	var item ContentItem
	if err := json.Unmarshal(b, &item); err != nil {
		return ContentItem{}, fmt.Errorf("failed to unmarshal content: %w", err)
	}
	return item, nil
}

// Capabilities returns the server's capabilities.
func (c *Client) Capabilities() *ServerCapabilities {
	return c.capabilities
}

// ServerName returns the unique identifier for this server.
func (c *Client) ServerName() string {
	return c.serverName
}

// Transport returns how the server is reached.
func (c *Client) Transport() TransportType {
	return c.transport
}

// Close closes the connection to the MCP server and stops the process.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close MCP client: %w", err)
	}
	return nil
}

// Ping checks if the server is still responsive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx); err != nil {
		if err == io.EOF {
			return ErrConnectionClosed(c.serverName)
		}
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}
