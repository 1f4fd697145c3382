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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/mcpgate/internal/log"
	"github.com/tombee/mcpgate/internal/tracing"
)

const tracerName = "github.com/tombee/mcpgate/internal/mcp"

// ToolExecutor runs one tool call. arguments is a JSON object; sessionID
// identifies the conversation the call belongs to and may be empty.
type ToolExecutor func(ctx context.Context, arguments, sessionID string) (string, error)

// Tool pairs a descriptor with the function that executes it.
type Tool struct {
	Definition ToolDefinition
	Executor   ToolExecutor
}

// Name returns the tool's name.
func (t Tool) Name() string {
	return t.Definition.Name
}

// ToolSource exposes a set of callable tools. Decorators such as the
// approval gate and the disabled-tools filter wrap a ToolSource and return
// another one, so they compose in any order.
type ToolSource interface {
	ListTools(ctx context.Context) ([]Tool, error)
}

// ToolSourceFunc adapts a function to the ToolSource interface.
type ToolSourceFunc func(ctx context.Context) ([]Tool, error)

// ListTools calls f.
func (f ToolSourceFunc) ListTools(ctx context.Context) ([]Tool, error) {
	return f(ctx)
}

// Execute looks up name in source and runs it.
func Execute(ctx context.Context, source ToolSource, name, arguments, sessionID string) (string, error) {
	if source == nil {
		return "", ErrNoTools
	}
	tools, err := source.ListTools(ctx)
	if err != nil {
		return "", err
	}
	for _, tool := range tools {
		if tool.Name() == name {
			return tool.Executor(ctx, arguments, sessionID)
		}
	}
	return "", ErrToolNotFound(name)
}

// Definitions returns the descriptors of tools, in order.
func Definitions(tools []Tool) []ToolDefinition {
	defs := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = t.Definition
	}
	return defs
}

// ClientSource aggregates the tools of several MCP clients. Tool names are
// unique across the set: when two servers expose the same name, the server
// that sorts first wins.
type ClientSource struct {
	clients []ClientProvider
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewClientSource aggregates clients into one tool source.
func NewClientSource(clients []ClientProvider, logger *slog.Logger) *ClientSource {
	sorted := append([]ClientProvider(nil), clients...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ServerName() < sorted[j].ServerName()
	})
	return &ClientSource{
		clients: sorted,
		logger:  log.WithComponent(logger, "tool-source"),
		tracer:  otel.Tracer(tracerName),
	}
}

// Clients returns the aggregated clients.
func (s *ClientSource) Clients() []ClientProvider {
	return s.clients
}

// ListTools lists every client's tools. A client that fails to list is
// logged and skipped.
func (s *ClientSource) ListTools(ctx context.Context) ([]Tool, error) {
	var tools []Tool
	seen := make(map[string]string)

	for _, c := range s.clients {
		defs, err := c.ListTools(ctx)
		if err != nil {
			s.logger.Warn("failed to list tools", log.ServerKey, c.ServerName(), log.Error(err))
			continue
		}
		for _, def := range defs {
			if owner, dup := seen[def.Name]; dup {
				s.logger.Warn("duplicate tool name, keeping first",
					log.ToolKey, def.Name,
					log.ServerKey, c.ServerName(),
					"kept_server", owner)
				continue
			}
			seen[def.Name] = c.ServerName()
			if def.Server == "" {
				def.Server = c.ServerName()
			}
			tools = append(tools, Tool{Definition: def, Executor: s.executor(c, def.Name)})
		}
	}
	return tools, nil
}

// executor routes a call to c. Error results come back as text prefixed
// with "Error: " so the caller can show them to the model.
func (s *ClientSource) executor(c ClientProvider, toolName string) ToolExecutor {
	return func(ctx context.Context, arguments, sessionID string) (string, error) {
		ctx, span := s.tracer.Start(ctx, "mcp.tool.call",
			trace.WithAttributes(
				attribute.String("mcp.server", c.ServerName()),
				attribute.String("mcp.tool", toolName),
				attribute.String("mcp.session_id", sessionID),
			))
		defer span.End()

		args, err := parseArguments(arguments)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			recordToolCall(toolName, "invalid_arguments")
			return "", err
		}

		start := time.Now()
		resp, err := c.CallTool(ctx, ToolCallRequest{Name: toolName, Arguments: args})
		duration := time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			recordToolCall(toolName, "error")
			tracing.RecordToolCall(ctx, c.ServerName(), toolName, "error", duration)
			s.logger.Warn("tool call failed",
				log.ServerKey, c.ServerName(),
				log.ToolKey, toolName,
				log.DurationKey, duration.Milliseconds(),
				log.Error(err))
			return "", fmt.Errorf("mcp tool call failed: %w", err)
		}

		s.logger.Debug("tool call completed",
			log.ServerKey, c.ServerName(),
			log.ToolKey, toolName,
			log.DurationKey, duration.Milliseconds(),
			"is_error", resp.IsError)

		if resp.IsError {
			span.SetStatus(codes.Error, "tool returned an error result")
			recordToolCall(toolName, "tool_error")
			tracing.RecordToolCall(ctx, c.ServerName(), toolName, "tool_error", duration)
			text := resp.Text()
			if text == "" {
				text = "tool execution failed"
			}
			return "Error: " + text, nil
		}

		recordToolCall(toolName, "ok")
		tracing.RecordToolCall(ctx, c.ServerName(), toolName, "ok", duration)
		return resp.Text(), nil
	}
}

// parseArguments decodes a JSON object. Blank input means no arguments.
func parseArguments(arguments string) (map[string]interface{}, error) {
	if strings.TrimSpace(arguments) == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, fmt.Errorf("tool arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
