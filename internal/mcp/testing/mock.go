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

// Package testing provides in-memory doubles for the mcp package.
package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/tombee/mcpgate/internal/mcp"
)

// MockClient implements mcp.ClientProvider for testing.
type MockClient struct {
	serverName string

	mu       sync.RWMutex
	tools    []mcp.ToolDefinition
	callFunc func(ctx context.Context, req mcp.ToolCallRequest) (*mcp.ToolCallResponse, error)
	pingFunc func(ctx context.Context) error
	listErr  error
	calls    []mcp.ToolCallRequest
	closed   int
}

// NewMockClient creates a mock client exposing the named tools.
func NewMockClient(serverName string, toolNames ...string) *MockClient {
	tools := make([]mcp.ToolDefinition, len(toolNames))
	for i, name := range toolNames {
		tools[i] = mcp.ToolDefinition{
			Name:        name,
			Description: fmt.Sprintf("%s from %s", name, serverName),
			InputSchema: []byte(`{"type":"object"}`),
		}
	}
	return &MockClient{serverName: serverName, tools: tools}
}

// ListTools returns a copy of the configured tools.
func (c *MockClient) ListTools(ctx context.Context) ([]mcp.ToolDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	out := make([]mcp.ToolDefinition, len(c.tools))
	copy(out, c.tools)
	return out, nil
}

// CallTool records the request and runs the configured handler. Without a
// handler it echoes the tool name.
func (c *MockClient) CallTool(ctx context.Context, req mcp.ToolCallRequest) (*mcp.ToolCallResponse, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	callFunc := c.callFunc
	c.mu.Unlock()

	if callFunc != nil {
		return callFunc(ctx, req)
	}
	return &mcp.ToolCallResponse{
		Content: []mcp.ContentItem{{Type: "text", Text: fmt.Sprintf("Mock response for %s", req.Name)}},
	}, nil
}

// Close counts the call.
func (c *MockClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

// Ping returns success unless a ping function is configured.
func (c *MockClient) Ping(ctx context.Context) error {
	c.mu.RLock()
	pingFunc := c.pingFunc
	c.mu.RUnlock()
	if pingFunc != nil {
		return pingFunc(ctx)
	}
	return nil
}

// ServerName returns the mock server name.
func (c *MockClient) ServerName() string {
	return c.serverName
}

// Capabilities reports tool support only.
func (c *MockClient) Capabilities() *mcp.ServerCapabilities {
	return &mcp.ServerCapabilities{Tools: &mcp.ListChangedCapability{}}
}

// SetCallHandler sets a custom call handler.
func (c *MockClient) SetCallHandler(f func(ctx context.Context, req mcp.ToolCallRequest) (*mcp.ToolCallResponse, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callFunc = f
}

// SetPingFunc sets a custom ping function.
func (c *MockClient) SetPingFunc(f func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingFunc = f
}

// SetListError makes ListTools fail.
func (c *MockClient) SetListError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listErr = err
}

// Calls returns the recorded tool calls.
func (c *MockClient) Calls() []mcp.ToolCallRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]mcp.ToolCallRequest(nil), c.calls...)
}

// Closed returns how many times Close was called.
func (c *MockClient) Closed() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// StaticSource is a ToolSource over a fixed tool list. Each tool's executor
// records its invocation and returns "<name> result".
type StaticSource struct {
	mu    sync.Mutex
	names []string
	calls []string
}

// NewStaticSource creates a source exposing the named tools.
func NewStaticSource(names ...string) *StaticSource {
	return &StaticSource{names: names}
}

// ListTools returns one tool per configured name.
func (s *StaticSource) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	tools := make([]mcp.Tool, len(s.names))
	for i, name := range s.names {
		name := name
		tools[i] = mcp.Tool{
			Definition: mcp.ToolDefinition{Name: name, Server: "static"},
			Executor: func(ctx context.Context, arguments, sessionID string) (string, error) {
				s.mu.Lock()
				s.calls = append(s.calls, name)
				s.mu.Unlock()
				return name + " result", nil
			},
		}
	}
	return tools, nil
}

// Calls returns the names of executed tools, in order.
func (s *StaticSource) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Connector hands out mock clients by provider name, for use as a
// ClientFactoryConfig.Connect hook.
type Connector struct {
	mu       sync.Mutex
	tools    map[string][]string
	failures map[string]error
	configs  []*mcp.ProviderConfig
	clients  map[string][]*MockClient
}

// NewConnector creates a connector with no servers.
func NewConnector() *Connector {
	return &Connector{
		tools:    make(map[string][]string),
		failures: make(map[string]error),
		clients:  make(map[string][]*MockClient),
	}
}

// AddServer registers the tools a server exposes.
func (c *Connector) AddServer(name string, tools ...string) *Connector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools[name] = tools
	return c
}

// Fail makes connecting to name return err.
func (c *Connector) Fail(name string, err error) *Connector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[name] = err
	return c
}

// Connect implements mcp.ConnectFunc.
func (c *Connector) Connect(ctx context.Context, cfg mcp.ClientConfig) (mcp.ClientProvider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := cfg.Provider.Name
	c.configs = append(c.configs, cfg.Provider)
	if err, ok := c.failures[name]; ok {
		return nil, err
	}
	tools, ok := c.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown server: %s", name)
	}
	client := NewMockClient(name, tools...)
	c.clients[name] = append(c.clients[name], client)
	return client, nil
}

// Configs returns the provider configs seen by Connect, in order.
func (c *Connector) Configs() []*mcp.ProviderConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*mcp.ProviderConfig(nil), c.configs...)
}

// Clients returns every client created for name, oldest first.
func (c *Connector) Clients(name string) []*MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*MockClient(nil), c.clients[name]...)
}
