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
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/mcpgate/internal/commands/shared"
	mcpgw "github.com/tombee/mcpgate/internal/mcp"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate or export mcp.json",
	}
	cmd.AddCommand(newConfigValidateCommand())
	cmd.AddCommand(newConfigExportCommand())
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check that an MCP server file parses",
		Long: `Parse an MCP server file and report each server's transport.

Servers missing a required field (command for stdio, url for http and
http-sse) fail validation. Unknown transports fall back to stdio with a
warning.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return runConfigValidate(e, args)
		},
	}
}

func newConfigExportCommand() *cobra.Command {
	var extensions bool

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Print an MCP server file in canonical form",
		Long: `Print an MCP server file in canonical form.

Without --extensions the output is the minimal, interoperable shape:
enabled servers omit "enabled", and mcpgate-only fields (disabled tools,
working directory, install provenance) are left out.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			return runConfigExport(e, args, extensions)
		},
	}
	cmd.Flags().BoolVar(&extensions, "extensions", false, "Include mcpgate-specific fields")
	return cmd
}

// readConfigs parses the file named in args, or the configured mcp.json.
func readConfigs(e *env, args []string) (map[string]*mcpgw.ProviderConfig, string, error) {
	if len(args) == 0 {
		path, err := e.store.Path()
		if err != nil {
			return nil, "", err
		}
		configs, err := e.store.Load()
		return configs, path, err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, args[0], shared.NewInvalidUsageError("cannot read "+args[0], err)
	}
	configs, err := e.store.Parse(data)
	return configs, args[0], err
}

func runConfigValidate(e *env, args []string) error {
	configs, path, err := readConfigs(e, args)
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		type validateResponse struct {
			shared.JSONResponse
			File    string         `json:"file"`
			Servers []serverStatus `json:"servers"`
		}
		resp := validateResponse{JSONResponse: shared.NewJSONResponse("mcp config validate"), File: path}
		for _, name := range mcpgw.SortedNames(configs) {
			cfg := configs[name]
			resp.Servers = append(resp.Servers, serverStatus{
				Name:      name,
				Transport: string(cfg.Transport()),
				Enabled:   cfg.Enabled,
				Target:    target(cfg),
			})
		}
		return shared.EmitJSON(resp)
	}

	out := shared.Output()
	fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%s: %d server(s)", path, len(configs))))
	for _, name := range mcpgw.SortedNames(configs) {
		cfg := configs[name]
		fmt.Fprintf(out, "  %s %-20s %s\n", "•", name, shared.Muted.Render(string(cfg.Transport())))
	}
	return nil
}

func runConfigExport(e *env, args []string, extensions bool) error {
	configs, _, err := readConfigs(e, args)
	if err != nil {
		return err
	}
	data, err := e.store.Export(configs, extensions)
	if err != nil {
		return err
	}
	_, err = shared.Output().Write(data)
	return err
}
