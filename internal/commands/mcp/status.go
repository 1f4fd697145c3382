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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/mcpgate/internal/commands/shared"
	mcpgw "github.com/tombee/mcpgate/internal/mcp"
)

type serverStatus struct {
	Name          string   `json:"name"`
	Transport     string   `json:"transport"`
	Enabled       bool     `json:"enabled"`
	Target        string   `json:"target"`
	DisabledTools []string `json:"disabled_tools,omitempty"`
	Installed     bool     `json:"installed,omitempty"`
}

type statusResponse struct {
	shared.JSONResponse
	MCPEnabled       bool           `json:"mcp_enabled"`
	ApprovalRequired bool           `json:"approval_required"`
	ApprovalTimeout  string         `json:"approval_timeout"`
	ToolTimeout      string         `json:"tool_timeout"`
	ProvidersFile    string         `json:"providers_file"`
	Servers          []serverStatus `json:"servers"`
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show gateway settings and configured servers",
		Example: `  # Show status
  mcpgate mcp status

  # Extract enabled server names
  mcpgate mcp status --json | jq -r '.servers[] | select(.enabled) | .name'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return runStatus(e)
		},
	}
}

func runStatus(e *env) error {
	configs, err := e.store.Load()
	if err != nil {
		return err
	}
	path, err := e.store.Path()
	if err != nil {
		return err
	}

	resp := statusResponse{
		JSONResponse:     shared.NewJSONResponse("mcp status"),
		MCPEnabled:       e.settings.MCPEnabled(),
		ApprovalRequired: e.settings.ApprovalRequired(),
		ApprovalTimeout:  e.settings.ApprovalTimeout().String(),
		ToolTimeout:      e.settings.ToolTimeout().String(),
		ProvidersFile:    path,
		Servers:          make([]serverStatus, 0, len(configs)),
	}
	for _, name := range mcpgw.SortedNames(configs) {
		cfg := configs[name]
		resp.Servers = append(resp.Servers, serverStatus{
			Name:          name,
			Transport:     string(cfg.Transport()),
			Enabled:       cfg.Enabled,
			Target:        target(cfg),
			DisabledTools: cfg.DisabledTools,
			Installed:     cfg.InstallPath != "",
		})
	}

	if shared.GetJSON() {
		return shared.EmitJSON(resp)
	}

	out := shared.Output()
	fmt.Fprintln(out, shared.Header.Render("MCP gateway"))
	fmt.Fprintf(out, "  %s %s\n", shared.RenderLabel("MCP:          "), shared.RenderState(resp.MCPEnabled, "enabled", "disabled"))
	fmt.Fprintf(out, "  %s %s (timeout %s)\n", shared.RenderLabel("Approval:     "),
		shared.RenderState(resp.ApprovalRequired, "required", "off"), resp.ApprovalTimeout)
	fmt.Fprintf(out, "  %s %s\n", shared.RenderLabel("Tool timeout: "), resp.ToolTimeout)
	fmt.Fprintf(out, "  %s %s\n\n", shared.RenderLabel("Servers file: "), resp.ProvidersFile)

	if len(resp.Servers) == 0 {
		fmt.Fprintln(out, "No MCP servers configured.")
		fmt.Fprintln(out, "\nTo add one from the registry:")
		fmt.Fprintln(out, "  mcpgate mcp registry add <name>")
		return nil
	}

	fmt.Fprintf(out, "%-20s %-10s %-9s %s\n", "NAME", "TRANSPORT", "STATE", "TARGET")
	fmt.Fprintln(out, strings.Repeat("-", 70))
	for _, s := range resp.Servers {
		state := "enabled"
		if !s.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(out, "%-20s %-10s %-9s %s\n", truncate(s.Name, 20), s.Transport, state, truncate(s.Target, 40))
		if len(s.DisabledTools) > 0 {
			fmt.Fprintf(out, "  %s %s\n", shared.RenderLabel("disabled tools:"), strings.Join(s.DisabledTools, ", "))
		}
	}
	return nil
}
