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
	"encoding/json"
	"strings"
)

// TransportType identifies how mcpgate talks to a provider.
type TransportType string

const (
	// TransportStdio launches a local subprocess and speaks over stdin/stdout.
	TransportStdio TransportType = "stdio"
	// TransportHTTP connects to a remote streamable HTTP endpoint.
	TransportHTTP TransportType = "http"
	// TransportHTTPSSE connects to a remote endpoint using server-sent events.
	TransportHTTPSSE TransportType = "http-sse"
)

// ParseTransport maps a configuration value to a TransportType. Matching is
// case-insensitive. The second result is false for unknown values, in which
// case TransportStdio is returned.
func ParseTransport(value string) (TransportType, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "stdio":
		return TransportStdio, true
	case "http", "streamable-http":
		return TransportHTTP, true
	case "http-sse", "http_sse", "sse":
		return TransportHTTPSSE, true
	default:
		return TransportStdio, false
	}
}

// IsRemote reports whether the transport connects to a URL instead of a process.
func (t TransportType) IsRemote() bool {
	return t == TransportHTTP || t == TransportHTTPSSE
}

// ToolDefinition represents an MCP tool's metadata and schema.
type ToolDefinition struct {
	// Name is the unique identifier for this tool
	Name string `json:"name"`

	// Description explains what the tool does
	Description string `json:"description"`

	// InputSchema defines the expected input parameters using JSON Schema
	InputSchema json.RawMessage `json:"inputSchema"`

	// Server is the provider that exposes this tool
	Server string `json:"server,omitempty"`
}

// ToolCallRequest represents a request to execute an MCP tool.
type ToolCallRequest struct {
	// Name is the tool to execute
	Name string `json:"name"`

	// Arguments contains the input parameters for the tool
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolCallResponse represents the result of an MCP tool execution.
type ToolCallResponse struct {
	// Content contains the tool's output
	Content []ContentItem `json:"content"`

	// IsError indicates if the tool execution failed
	IsError bool `json:"isError,omitempty"`
}

// Text joins the text content blocks of the response with newlines.
func (r *ToolCallResponse) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Content))
	for _, item := range r.Content {
		if item.Type == "text" && item.Text != "" {
			parts = append(parts, item.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ContentItem represents a piece of content in an MCP response.
type ContentItem struct {
	// Type is the content type (text, image, resource)
	Type string `json:"type"`

	// Text is the text content (for type="text")
	Text string `json:"text,omitempty"`

	// Data is the base64-encoded data (for type="image")
	Data string `json:"data,omitempty"`

	// MimeType is the MIME type for binary content
	MimeType string `json:"mimeType,omitempty"`
}

// ServerCapabilities describes what features an MCP server supports.
type ServerCapabilities struct {
	Tools   *ListChangedCapability `json:"tools,omitempty"`
	Logging bool                   `json:"logging,omitempty"`
}

// ListChangedCapability describes whether a server announces list changes.
type ListChangedCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}
