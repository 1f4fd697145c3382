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
	"github.com/spf13/cobra"
)

// NewMCPCommand creates the mcp command group.
func NewMCPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use: "mcp",
		Annotations: map[string]string{
			"group": "mcp",
		},
		Short: "Manage MCP (Model Context Protocol) servers",
		Long: `Manage the MCP servers whose tools mcpgate exposes.

Servers are defined in mcp.json (see 'mcpgate mcp config'). Every tool call
passes through the disabled-tools filter and, unless approval is turned
off or mcpgate runs headless, an interactive approval prompt.

Commands:
  status    Show gateway settings and configured servers
  config    Validate or export mcp.json
  start     Run a STDIO server in the foreground
  tools     List or call tools through the gateway
  registry  Search the MCP registry and add servers from it
  install   Build a Java MCP server from a git repository
  uninstall Remove a locally built server
  discover  Search GitHub for installable servers
  enable    Turn MCP (or one server) on
  disable   Turn MCP (or one server) off`,
	}

	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newStartCommand())
	cmd.AddCommand(newToolsCommand())
	cmd.AddCommand(newRegistryCommand())
	cmd.AddCommand(newInstallCommand())
	cmd.AddCommand(newUninstallCommand())
	cmd.AddCommand(newDiscoverCommand())
	cmd.AddCommand(newEnableCommand(true))
	cmd.AddCommand(newEnableCommand(false))

	return cmd
}
