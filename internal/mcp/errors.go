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
	"errors"
	"fmt"
)

// ErrApprovalTimeout marks an approval request that got no answer in time.
// The approval gate treats it as a denial and never returns it to callers.
var ErrApprovalTimeout = errors.New("approval timed out")

// ErrNoTools is returned by Gateway operations when no provider is enabled
// or every client failed to start.
var ErrNoTools = errors.New("no MCP tools available")

// MCPErrorCode is the category of an MCPError. The CLI maps codes to exit
// statuses and JSON error codes.
type MCPErrorCode string

const (
	ErrorCodeNotFound         MCPErrorCode = "NOT_FOUND"
	ErrorCodeAlreadyExists    MCPErrorCode = "ALREADY_EXISTS"
	ErrorCodeDisabled         MCPErrorCode = "DISABLED"
	ErrorCodeToolNotFound     MCPErrorCode = "TOOL_NOT_FOUND"
	ErrorCodeCommandNotFound  MCPErrorCode = "COMMAND_NOT_FOUND"
	ErrorCodeConnectionClosed MCPErrorCode = "CONNECTION_CLOSED"
)

// MCPError is a gateway error meant for people: a short message, optional
// detail, and the commands that usually fix it.
type MCPError struct {
	Code        MCPErrorCode
	Message     string
	Detail      string
	Suggestions []string
	Cause       error
}

func newError(code MCPErrorCode, format string, args ...any) *MCPError {
	return &MCPError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *MCPError) Error() string {
	return e.UserMessage()
}

func (e *MCPError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements pkg/errors.UserVisibleError.
func (e *MCPError) IsUserVisible() bool {
	return true
}

// UserMessage implements pkg/errors.UserVisibleError.
func (e *MCPError) UserMessage() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// Suggestion implements pkg/errors.UserVisibleError. Only the first
// suggestion is reported; the rest are for JSON output.
func (e *MCPError) Suggestion() string {
	if len(e.Suggestions) == 0 {
		return ""
	}
	return e.Suggestions[0]
}

// WithCause records the underlying error.
func (e *MCPError) WithCause(cause error) *MCPError {
	e.Cause = cause
	return e
}

func (e *MCPError) suggest(s ...string) *MCPError {
	e.Suggestions = append(e.Suggestions, s...)
	return e
}

// ErrServerNotFound reports a name missing from mcp.json.
func ErrServerNotFound(name string) *MCPError {
	return newError(ErrorCodeNotFound, "MCP server %q not found", name).suggest(
		"List configured servers: mcpgate mcp status",
		"Add it from the registry: mcpgate mcp registry add <registry-name> --as "+name,
	)
}

// ErrServerAlreadyExists reports a name clash when adding a server.
func ErrServerAlreadyExists(name string) *MCPError {
	return newError(ErrorCodeAlreadyExists, "MCP server %q already exists", name).suggest(
		"Pick another name with --as",
		"Remove or rename the existing entry in mcp.json",
	)
}

// ErrServerDisabled reports a server with enabled=false.
func ErrServerDisabled(name string) *MCPError {
	return newError(ErrorCodeDisabled, "MCP server %q is disabled", name).suggest(
		"Enable it: mcpgate mcp enable " + name,
	)
}

// ErrGatewayDisabled reports that MCP support is switched off in settings.
func ErrGatewayDisabled() *MCPError {
	return newError(ErrorCodeDisabled, "MCP support is disabled").suggest("Enable it: mcpgate mcp enable")
}

// ErrToolNotFound reports a tool that no enabled server exposes.
func ErrToolNotFound(tool string) *MCPError {
	e := newError(ErrorCodeToolNotFound, "tool %q not found", tool).suggest("List available tools: mcpgate mcp tools list")
	e.Detail = "no enabled server exposes it, or it is listed in disabledTools"
	return e
}

// ErrCommandNotFound reports a provider executable missing from PATH.
// The suggestions name the runtime that usually provides it.
func ErrCommandNotFound(command string) *MCPError {
	e := newError(ErrorCodeCommandNotFound, "command %q not found in PATH", command)
	switch command {
	case "npx", "node":
		e.suggest("Install Node.js: https://nodejs.org/")
	case "docker":
		e.suggest("Install Docker: https://docs.docker.com/get-docker/")
	case "uvx", "uv", "python", "python3":
		e.suggest("Install uv: https://docs.astral.sh/uv/")
	case "java":
		e.suggest("Install a Java runtime (17 or newer)")
	}
	return e.suggest(fmt.Sprintf("Use an absolute path in mcp.json: \"command\": \"/path/to/%s\"", command))
}

// ErrConnectionClosed reports a provider that hung up.
func ErrConnectionClosed(name string) *MCPError {
	return newError(ErrorCodeConnectionClosed, "connection to MCP server %q closed", name).suggest(
		"Check its console output: mcpgate mcp start " + name,
	)
}

// GetMCPError returns the first MCPError in err's chain, or nil.
func GetMCPError(err error) *MCPError {
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	return nil
}
