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

import "context"

// ClientProvider is one live connection to a provider. The ClientFactory
// hands these to a ClientSource, which turns their tools into Tools.
// MockClient in internal/mcp/testing implements it for tests.
type ClientProvider interface {
	ServerName() string
	ListTools(ctx context.Context) ([]ToolDefinition, error)
	CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error)

	// Ping is used by the factory to drop dead cached clients.
	Ping(ctx context.Context) error

	// Capabilities is nil until the initialize handshake completes.
	Capabilities() *ServerCapabilities

	Close() error
}
