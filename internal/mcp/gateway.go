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
	"log/slog"

	"github.com/tombee/mcpgate/internal/log"
	"github.com/tombee/mcpgate/pkg/approval"
)

// GatewaySettings is the settings collaborator read by the gateway on each
// request.
type GatewaySettings interface {
	ApprovalSettings
	MCPEnabled() bool
}

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	// Providers returns the current provider set. Required.
	Providers ProviderLister

	// Settings supplies the enabled flag and approval settings. Required.
	Settings GatewaySettings

	// Factory connects providers. Defaults to a factory with default settings.
	Factory *ClientFactory

	// Approver confirms tool calls when approval is required.
	Approver approval.Approver

	// Headless skips approval entirely.
	Headless bool

	// Notifier receives user-visible notices such as approval timeouts.
	Notifier Notifier

	// Logger is the logger to use. Defaults to slog.Default().
	Logger *slog.Logger
}

// Gateway is the tool surface handed to the orchestration layer: connected
// providers, minus disabled tools, behind the approval gate.
type Gateway struct {
	cfg     GatewayConfig
	factory *ClientFactory
	logger  *slog.Logger
}

// NewGateway creates a gateway.
func NewGateway(cfg GatewayConfig) *Gateway {
	factory := cfg.Factory
	if factory == nil {
		factory = NewClientFactory(ClientFactoryConfig{Logger: cfg.Logger})
	}
	return &Gateway{
		cfg:     cfg,
		factory: factory,
		logger:  log.WithComponent(cfg.Logger, "gateway"),
	}
}

// Enabled reports whether MCP tools are switched on.
func (g *Gateway) Enabled() bool {
	return g.cfg.Settings == nil || g.cfg.Settings.MCPEnabled()
}

// ToolSource builds the filtered, gated tool source from the current
// provider set. It returns nil when MCP is disabled or no provider is
// reachable.
func (g *Gateway) ToolSource(ctx context.Context) ToolSource {
	if !g.Enabled() {
		g.logger.Debug("MCP disabled, exposing no tools")
		return nil
	}

	var providers []*ProviderConfig
	if g.cfg.Providers != nil {
		providers = g.cfg.Providers()
	}

	source := g.factory.CreateToolSource(ctx, providers)
	if source == nil {
		return nil
	}

	filtered := NewToolFilter(source, g.cfg.Providers, g.cfg.Logger)
	return NewApprovalGate(filtered, ApprovalGateConfig{
		Approver: g.cfg.Approver,
		Settings: g.cfg.Settings,
		Headless: g.cfg.Headless,
		Notifier: g.cfg.Notifier,
		Logger:   g.cfg.Logger,
	})
}

// ListTools returns the exposed tools, or none when disabled.
func (g *Gateway) ListTools(ctx context.Context) ([]Tool, error) {
	source := g.ToolSource(ctx)
	if source == nil {
		return nil, nil
	}
	return source.ListTools(ctx)
}

// Execute runs one tool through the filter and approval gate.
func (g *Gateway) Execute(ctx context.Context, toolName, arguments, sessionID string) (string, error) {
	if !g.Enabled() {
		return "", ErrGatewayDisabled()
	}
	return Execute(ctx, g.ToolSource(ctx), toolName, arguments, sessionID)
}

// Close releases every connected client.
func (g *Gateway) Close() error {
	return g.factory.Close()
}
