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
	"github.com/tombee/mcpgate/internal/commands/shared"
	"github.com/tombee/mcpgate/internal/log"
	mcpgw "github.com/tombee/mcpgate/internal/mcp"
	"github.com/tombee/mcpgate/pkg/approval"
)

// newGateway wires the tool pipeline for one CLI invocation. Providers are
// re-read from mcp.json on every listing.
func (e *env) newGateway() (*mcpgw.Gateway, *mcpgw.TrafficLog) {
	traffic := mcpgw.NewTrafficLog(mcpgw.TrafficLogConfig{
		Logger: e.logger,
		Debug:  e.settings.DebugLogs(),
	})

	factory := mcpgw.NewClientFactory(mcpgw.ClientFactoryConfig{
		ToolTimeout: e.settings.ToolTimeout(),
		Version:     version(),
		Secrets:     newSecretResolver(),
		Traffic:     traffic,
		Logger:      e.logger,
	})

	providers := func() []*mcpgw.ProviderConfig {
		configs, err := e.store.Load()
		if err != nil {
			e.logger.Warn("failed to load MCP servers", log.Error(err))
			return nil
		}
		out := make([]*mcpgw.ProviderConfig, 0, len(configs))
		for _, name := range mcpgw.SortedNames(configs) {
			out = append(out, configs[name])
		}
		return out
	}

	var approver approval.Approver = approval.NewPrompter()
	gw := mcpgw.NewGateway(mcpgw.GatewayConfig{
		Providers: providers,
		Settings:  e.settings,
		Factory:   factory,
		Approver:  approver,
		Headless:  shared.GetHeadless(),
		Notifier:  shared.NewStderrNotifier(nil),
		Logger:    e.logger,
	})
	return gw, traffic
}
