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

/*
Package cli provides the root command and shared configuration for the mcpgate CLI.

This package creates the main Cobra command tree and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

	mcpgate
	├── mcp
	│   ├── status       Show settings and configured servers
	│   ├── enable       Enable the gateway or one server
	│   ├── disable      Disable the gateway or one server
	│   ├── config       Validate or export mcp.json
	│   ├── start        Run one stdio server under supervision
	│   ├── tools        List or call tools through the gateway
	│   ├── registry     Search the registry and add servers
	│   ├── install      Build a Java server from a repository
	│   ├── uninstall    Remove an installed server
	│   └── discover     Search GitHub for installable servers
	├── version          Show version
	└── help             Show help (--json for machine-readable output)

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	rootCmd.AddCommand(mcp.NewMCPCommand())
	if err := rootCmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

	--verbose, -v    Enable debug logging
	--quiet, -q      Suppress non-error output
	--json           Output in JSON format
	--headless       Approve tool calls without prompting
	--config         Path to settings.yaml
	--providers      Path to mcp.json

# Exit Codes

  - 0: Success
  - 1: General error
  - 2: Invalid usage or configuration
  - 3: Server, tool or registry entry not found
  - 130: Interrupted
*/
package cli
