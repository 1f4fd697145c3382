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

package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/mcpgate/internal/commands/shared"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command for mcpgate
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcpgate",
		Short: "mcpgate - MCP client gateway",
		Long: `mcpgate connects to the MCP servers listed in mcp.json, filters and
approves their tools, and exposes them as one tool surface.

Run 'mcpgate mcp status' to see configured servers.
Run 'mcpgate mcp registry search <query>' to find new ones.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	flags := shared.RegisterFlagPointers()

	cmd.PersistentFlags().BoolVarP(flags.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(flags.Quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(flags.JSON, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVar(flags.Headless, "headless", false, "Approve tool calls without prompting (implied when no terminal is attached)")
	cmd.PersistentFlags().StringVar(flags.Config, "config", "", "Path to settings file (default: ~/.config/mcpgate/settings.yaml)")
	cmd.PersistentFlags().StringVar(flags.Providers, "providers", "", "Path to mcp.json (default: settings providers_file or ~/.config/mcpgate/mcp.json)")

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
