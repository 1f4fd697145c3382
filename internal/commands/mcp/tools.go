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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/mcpgate/internal/commands/shared"
	"github.com/tombee/mcpgate/internal/log"
	mcpgw "github.com/tombee/mcpgate/internal/mcp"
)

func newToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List or call tools through the gateway",
	}
	cmd.AddCommand(newToolsListCommand())
	cmd.AddCommand(newToolsCallCommand())
	return cmd
}

func newToolsListCommand() *cobra.Command {
	var showTraffic bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tools every enabled server exposes",
		Long: `Connect to every enabled server and list the tools the gateway exposes.
Tools named in a server's disabledTools are not shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return runToolsList(cmd.Context(), e, showTraffic)
		},
	}
	cmd.Flags().BoolVar(&showTraffic, "traffic", false, "Print classified protocol traffic to stderr")
	return cmd
}

func newToolsCallCommand() *cobra.Command {
	var session string
	var showTraffic bool

	cmd := &cobra.Command{
		Use:   "call <tool> [json-arguments]",
		Short: "Call a tool through the filter and approval gate",
		Example: `  mcpgate mcp tools call read_file '{"path":"README.md"}'

  # Skip the approval prompt
  mcpgate mcp tools call list_directory '{"path":"."}' --headless`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			arguments := "{}"
			if len(args) == 2 {
				arguments = args[1]
			}
			return runToolsCall(cmd.Context(), e, args[0], arguments, session, showTraffic)
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Session ID passed to the tool")
	cmd.Flags().BoolVar(&showTraffic, "traffic", false, "Print classified protocol traffic to stderr")
	return cmd
}

type toolEntry struct {
	Name        string `json:"name"`
	Server      string `json:"server"`
	Description string `json:"description,omitempty"`
}

func runToolsList(ctx context.Context, e *env, showTraffic bool) error {
	gw, traffic := e.newGateway()
	defer gw.Close()
	if showTraffic {
		traffic.Subscribe(printTraffic)
	}

	if !gw.Enabled() {
		return mcpgw.ErrGatewayDisabled()
	}

	tools, err := gw.ListTools(ctx)
	if err != nil {
		return err
	}

	entries := make([]toolEntry, 0, len(tools))
	for _, def := range mcpgw.Definitions(tools) {
		entries = append(entries, toolEntry{Name: def.Name, Server: def.Server, Description: def.Description})
	}

	if shared.GetJSON() {
		type listResponse struct {
			shared.JSONResponse
			Tools []toolEntry `json:"tools"`
		}
		return shared.EmitJSON(listResponse{JSONResponse: shared.NewJSONResponse("mcp tools list"), Tools: entries})
	}

	out := shared.Output()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No tools available.")
		return nil
	}
	fmt.Fprintf(out, "%-30s %-20s %s\n", "TOOL", "SERVER", "DESCRIPTION")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, t := range entries {
		fmt.Fprintf(out, "%-30s %-20s %s\n", truncate(t.Name, 30), truncate(t.Server, 20), truncate(firstLine(t.Description), 60))
	}
	return nil
}

func runToolsCall(ctx context.Context, e *env, tool, arguments, session string, showTraffic bool) error {
	gw, traffic := e.newGateway()
	defer gw.Close()
	if showTraffic {
		traffic.Subscribe(printTraffic)
	}

	e.logger.Debug("calling tool", log.ToolKey, tool)
	result, err := gw.Execute(ctx, tool, arguments, session)
	if err != nil {
		if mcpErr := mcpgw.GetMCPError(err); mcpErr != nil && mcpErr.Code == mcpgw.ErrorCodeToolNotFound {
			return shared.NewNotFoundError("unknown tool", err)
		}
		return err
	}

	if shared.GetJSON() {
		type callResponse struct {
			shared.JSONResponse
			Tool   string `json:"tool"`
			Result string `json:"result"`
		}
		return shared.EmitJSON(callResponse{JSONResponse: shared.NewJSONResponse("mcp tools call"), Tool: tool, Result: result})
	}

	fmt.Fprintln(shared.Output(), result)
	return nil
}

func printTraffic(entry mcpgw.TrafficEntry) {
	fmt.Fprintf(os.Stderr, "%s %s %s\n", shared.Muted.Render(entry.Server), entry.Marker(), entry.Text)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
